package mksh

import (
	"context"
	"io"
	"os"

	"github.com/Distrotech/mksh/word"
)

// ExpandFlags mirrors the Expansion collaborator's flag bits (spec §6
// "recognised flag bits {DOBLANK, DOGLOB, DOTILDE, DOPAT, DOASNTILDE,
// ONEWORD}").
type ExpandFlags uint32

const (
	DoBlank ExpandFlags = 1 << iota
	DoGlob
	DoTilde
	DoPat
	DoAsnTilde
	OneWord
)

// Expander is the out-of-scope word-expansion collaborator (spec §1, §6).
type Expander interface {
	Expand(ctx context.Context, w word.Word, flags ExpandFlags) ([]string, error)
	ExpandOne(ctx context.Context, w word.Word, flags ExpandFlags) (string, error)
}

// BuiltinFlags mirrors the builtin registry entry's flag bits (spec §4.4,
// §6).
type BuiltinFlags uint32

const (
	// SpecBI marks a "special builtin": redirection failure or a
	// variable-assignment error unwinds ERROR / exits a non-interactive
	// shell (spec §4.4 step 4, §7).
	SpecBI BuiltinFlags = 1 << iota
	// KeepAsn marks a builtin whose leading NAME=value assignments persist
	// in the caller's scope rather than a fresh block (spec §4.4
	// "Assignment handling").
	KeepAsn
)

// Builtin is one entry of the out-of-scope builtin registry (spec §1, §6).
type Builtin struct {
	Flags BuiltinFlags
	Fn    func(ctx context.Context, sh *Shell, argv []string) int
}

// BuiltinRegistry is the out-of-scope builtin-lookup collaborator (spec §1,
// §6 "invoked through a registry {name -> {flags, fn(argv) -> int}}").
type BuiltinRegistry interface {
	Lookup(name string) (Builtin, bool)
}

// TypeFlags mirrors the symbol table's type/scope flag bits (spec §6
// "type flags include {LOCAL, LOCAL_COPY, EXPORT, INTEGER, READONLY,
// ARRAY}").
type TypeFlags uint32

const (
	Local TypeFlags = 1 << iota
	LocalCopy
	Export
	Integer
	ReadOnly
	Array
)

// Value is one symbol table entry's value.
type Value struct {
	Scalar string
	Elems  []string // set when Flags&Array != 0
	Flags  TypeFlags
}

// SymbolTable is the out-of-scope variable/function symbol-table
// collaborator (spec §1, §6).
type SymbolTable interface {
	Lookup(name string) (Value, bool)
	Set(name string, val Value, flags TypeFlags) error
	Delete(name string) error
	Typeset(decl string, flags TypeFlags) error
}

// GlobMatcher is the out-of-scope pattern-matching collaborator (spec §1,
// §4.4 "TCASE": "match with the glob matcher").
type GlobMatcher interface {
	Match(text, pattern string) bool
}

// Process is a running or exited child, as started by a ProcessHost (spec
// §6 "Process primitives: fork, exec, wait, ...").
type Process interface {
	Pid() int
	Wait() (int, error)
	Signal(os.Signal) error
}

// ProcessHost is the out-of-scope process-primitives collaborator (spec §1,
// §6), extended beyond the minimal Start-only sketch of SPEC_FULL §6 to
// cover the full primitive set spec §6 names ("fork, exec, wait, pipe,
// dup2, open, close, stat, access") since the Redirection Engine (§4.5) and
// Tree Executor (§4.4) need real fd-level operations, not just child
// process creation.
type ProcessHost interface {
	// Start creates a child running argv with the given environment and
	// the three standard streams wired to files, returning a handle to
	// wait on it (spec §4.4 "TEXEC": exec/fork primitives).
	Start(ctx context.Context, argv []string, env []string, files [3]*os.File) (Process, error)

	// Open, Dup, Dup2, Close, and Stat realize the Redirection Engine's
	// (§4.5) primitives against the shell process's own real file
	// descriptor table, so in-process builtins and the shell's own stdio
	// observe the same redirections a forked child would.
	Open(name string, flag int, perm os.FileMode) (fd int, err error)
	Dup(fd int) (int, error)
	Dup2(oldfd, newfd int) error
	Close(fd int) error
	Stat(name string) (os.FileInfo, error)

	// Pipe returns a connected read/write fd pair (spec §6 "pipe").
	Pipe() (r, w int, err error)

	// Reader returns a streaming reader over fd, for command substitution's
	// stdout capture.
	Reader(fd int) (io.Reader, error)
}
