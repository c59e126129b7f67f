package mksh

import (
	"os"

	"github.com/Distrotech/mksh/internal/fdtable"
)

// FrameKind names one kind of Execution environment stack frame (spec §3
// "Execution environment stack": "Frames typed {EXEC, LOOP, FUNC, ERRH,
// SUBSHELL, INCL, PARSE}").
type FrameKind int

const (
	FrameExec FrameKind = iota
	FrameLoop
	FrameFunc
	FrameErrH
	FrameSubshell
	FrameIncl
	FrameParse
)

func (k FrameKind) String() string {
	switch k {
	case FrameExec:
		return "EXEC"
	case FrameLoop:
		return "LOOP"
	case FrameFunc:
		return "FUNC"
	case FrameErrH:
		return "ERRH"
	case FrameSubshell:
		return "SUBSHELL"
	case FrameIncl:
		return "INCL"
	case FrameParse:
		return "PARSE"
	default:
		return "?"
	}
}

// envFrame is one frame of the Execution environment stack (spec §3): a
// saved-fd vector, a list of temp-file handles, and a record of which
// unwind Classes it declares itself a handler for.
type envFrame struct {
	kind  FrameKind
	fds   fdtable.Table
	temps []string

	prior *envFrame
}

// handles reports whether this frame kind is the nearest handler for class
// c (spec §4.6 "each env frame declares the set of classes it handles").
func (f *envFrame) handles(c Class) bool {
	switch f.kind {
	case FrameLoop:
		return c == Break || c == Continue
	case FrameFunc:
		return c == Return
	case FrameErrH, FrameParse:
		return c == Error
	case FrameSubshell:
		return c == Leave
	case FrameIncl:
		return c == Return
	case FrameExec:
		return false
	default:
		return false
	}
}

// pushEnv pushes a new frame of the given kind onto the shell's environment
// stack.
func (sh *Shell) pushEnv(kind FrameKind) *envFrame {
	f := &envFrame{kind: kind, prior: sh.env}
	sh.env = f
	return f
}

// popEnv pops and tears down the current top frame: restores its saved fds
// in descending fd order (fdtable.Table.Each; not necessarily the reverse
// of the order they were saved in) and removes any temp files it registered
// (spec §4.5 "registered for cleanup on env pop").
func (sh *Shell) popEnv() {
	f := sh.env
	if f == nil {
		return
	}
	sh.env = f.prior

	f.fds.Each(func(fd uint, s fdtable.Slot) bool {
		sh.restoreFD(int(fd), s)
		return true
	})
	for i := len(f.temps) - 1; i >= 0; i-- {
		os.Remove(f.temps[i])
	}
}

// registerTemp records a temp file path for cleanup when the current frame
// pops.
func (sh *Shell) registerTemp(path string) {
	if sh.env != nil {
		sh.env.temps = append(sh.env.temps, path)
	}
}

// unwindTo pops frames until one declares itself a handler for sig's class,
// running each popped frame's teardown along the way (spec §4.6 "unwind(c)
// pops frames until a handler claims c, executing any deferred teardown ...
// at each pop"). It returns true if a handler was found (and left on top of
// the stack); false if the stack was exhausted (the caller should treat
// this as a fatal/Exit condition).
func (sh *Shell) unwindTo(sig *Signal) bool {
	for sh.env != nil {
		if sh.env.handles(sig.Class) {
			return true
		}
		sh.popEnv()
	}
	return false
}
