package mksh

import (
	"fmt"
	"io"

	"github.com/kylelemons/godebug/pretty"
)

// dumpConfig matches the teacher's vmDumper idiom (a configurable diagnostic
// dumper writing to an io.Writer) but trades the teacher's hand-rolled
// address-column memory formatter for pretty.Config, since a command tree
// and environment-frame stack are ordinary nested Go values rather than a
// flat integer memory image.
var dumpConfig = &pretty.Config{
	Compact:           false,
	IncludeUnexported: false,
	PrintStringers:    true,
}

// DumpTree writes a human-readable rendering of a parsed command tree to w,
// for -x-adjacent diagnostics and tests (spec §9 Design Notes names a
// "dumper.go" pretty-printer idiom as part of the ambient stack).
func DumpTree(w io.Writer, n *Node) {
	fmt.Fprintln(w, dumpConfig.Sprint(n))
}

// DumpEnv writes the current environment-frame stack, innermost first.
func (sh *Shell) DumpEnv(w io.Writer) {
	var frames []*envFrame
	for f := sh.env; f != nil; f = f.prior {
		frames = append(frames, f)
	}
	fmt.Fprintln(w, dumpConfig.Sprint(frames))
}
