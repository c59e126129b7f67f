package mksh

import (
	"context"
	"io"
	"os"

	"github.com/Distrotech/mksh/internal/logio"
	"github.com/Distrotech/mksh/internal/srcstack"
	"github.com/Distrotech/mksh/word"
)

// Shell is the single encapsulated mutable-state context threaded through
// the lexer and executor, with no hidden singletons. fork gives a subshell
// or pipeline stage a shallow copy: its own source stack, reader, lexer and
// environment-frame chain, sharing Symbols, Funcs and the other
// collaborators with the parent by reference.
type Shell struct {
	Stack  srcstack.Stack
	Reader *Reader
	Lexer  *Lexer

	env *envFrame

	// Collaborators (spec §1, §6); every one of these is out of this
	// repository's scope conceptually but is given a real, if minimal,
	// default implementation so the executor is exercisable standalone.
	Expander Expander
	Builtins BuiltinRegistry
	Symbols  SymbolTable
	Glob     GlobMatcher
	Host     ProcessHost

	Funcs map[string]*Node

	// Positional holds $1, $2, ... (spec §6 GLOSSARY "positional parameters");
	// $# and $@/$* are derived from it in lookupScalar.
	Positional []string

	NoClobber bool
	ErrExit   bool
	XTrace    bool
	Restricted bool

	// inEval is incremented around `eval` bodies; errexit never triggers an
	// unwind while it is nonzero (spec §8 "errexit scope").
	inEval int

	// aliases backs the default alias-table collaborator used by the
	// lexer's FAlias resolution when no richer alias store is installed.
	aliases map[string]string

	// coproc holds the most recently started `|&` coprocess's pipe ends, if
	// any; execCoproc treats it as live until its done channel closes (spec
	// §4.4 "TCOPROC": "reject if a live coprocess exists").
	coproc *coprocHandle

	Status int

	// PipeStatus holds the exit codes of the most recently completed
	// pipeline, left to right (spec §3 "PIPESTATUS").
	PipeStatus []int

	log *logio.Logger

	kshname string // $0, per spec §4.4 "Function": Korn functions rebind it
	name    string // the shell's own name, the prefix of Warnf messages
}

// ShellOption configures a new Shell, directly modeled on the teacher's
// VMOption/options/noption trio (options.go).
type ShellOption interface{ apply(sh *Shell) }

type shellOptions []ShellOption

func (opts shellOptions) apply(sh *Shell) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(sh)
		}
	}
}

// ShellOptions composes several options into one, flattening nested
// composites (teacher's options.go "VMOptions" idiom).
func ShellOptions(opts ...ShellOption) ShellOption {
	var res shellOptions
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil:
		case shellOptions:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	if len(res) == 1 {
		return res[0]
	}
	return res
}

type optFunc func(sh *Shell)

func (f optFunc) apply(sh *Shell) { f(sh) }

// WithProcessHost installs a non-default ProcessHost (e.g. a fake one for
// tests).
func WithProcessHost(h ProcessHost) ShellOption {
	return optFunc(func(sh *Shell) { sh.Host = h })
}

// WithExpander installs a non-default Expander.
func WithExpander(e Expander) ShellOption {
	return optFunc(func(sh *Shell) { sh.Expander = e })
}

// WithBuiltins installs a non-default BuiltinRegistry.
func WithBuiltins(b BuiltinRegistry) ShellOption {
	return optFunc(func(sh *Shell) { sh.Builtins = b })
}

// WithSymbols installs a non-default SymbolTable.
func WithSymbols(s SymbolTable) ShellOption {
	return optFunc(func(sh *Shell) { sh.Symbols = s })
}

// WithGlob installs a non-default GlobMatcher.
func WithGlob(g GlobMatcher) ShellOption {
	return optFunc(func(sh *Shell) { sh.Glob = g })
}

// WithLogOutput directs warnings/xtrace to w instead of os.Stderr.
func WithLogOutput(w io.WriteCloser) ShellOption {
	return optFunc(func(sh *Shell) { sh.log.SetOutput(w) })
}

// WithXTrace turns on -x tracing at construction time.
func WithXTrace(on bool) ShellOption {
	return optFunc(func(sh *Shell) { sh.XTrace = on })
}

// WithNoClobber turns on noclobber (set -C) at construction time.
func WithNoClobber(on bool) ShellOption {
	return optFunc(func(sh *Shell) { sh.NoClobber = on })
}

// WithErrExit turns on errexit (set -e) at construction time.
func WithErrExit(on bool) ShellOption {
	return optFunc(func(sh *Shell) { sh.ErrExit = on })
}

// NewShell constructs a Shell with real default collaborators (stdExpander,
// stdBuiltins, mapSymbolTable, globMatcher, osProcessHost), then applies
// opts over them.
func NewShell(opts ...ShellOption) *Shell {
	sh := &Shell{
		Funcs:   make(map[string]*Node),
		aliases: make(map[string]string),
		Host:    NewOSProcessHost(),
		log:     &logio.Logger{},
		name:    "mksh",
		kshname: "mksh",
	}
	sh.log.SetOutput(noCloseWriter{os.Stderr})
	sh.Symbols = newMapSymbolTable()
	sh.Glob = globMatcher{}
	sh.Builtins = newStdBuiltins()
	sh.Expander = &stdExpander{sh: sh}

	sh.Reader = NewReader(&sh.Stack)
	sh.Lexer = NewLexer(sh.Reader, sh.lookupAlias)
	sh.Lexer.SetExpander(sh)

	ShellOptions(opts...).apply(sh)
	return sh
}

type noCloseWriter struct{ io.Writer }

func (noCloseWriter) Close() error { return nil }

// lookupAlias is the default alias collaborator backing FAlias resolution.
func (sh *Shell) lookupAlias(name string) (string, bool) {
	body, ok := sh.aliases[name]
	return body, ok
}

// SetAlias installs/updates an alias body.
func (sh *Shell) SetAlias(name, body string) { sh.aliases[name] = body }

// Warnf prints a POSIX-style "prog: message" warning (spec §7 "User-visible:
// warnings prefixed with program name and source line").
func (sh *Shell) Warnf(format string, args ...interface{}) {
	sh.log.Printf(sh.name, format, args...)
}

// Xtracef prints an xtrace ("-x") line when tracing is enabled (spec §4.4
// "xtrace: if enabled, print assignments and argv quoted on fd
// shl_xtrace").
func (sh *Shell) Xtracef(format string, args ...interface{}) {
	if sh.XTrace {
		sh.log.Printf("+", format, args...)
	}
}

// ExpandOne satisfies HeredocExpander by delegating to the installed
// Expander collaborator with a background context — the here-document
// collector runs synchronously as part of lexing and has no request-scoped
// context of its own to thread through.
func (sh *Shell) ExpandOne(w word.Word) (string, error) {
	return sh.expandOne(context.Background(), w)
}

func (sh *Shell) expandOne(ctx context.Context, w word.Word) (string, error) {
	if sh.Expander == nil {
		return w.Literal(), nil
	}
	return sh.Expander.ExpandOne(ctx, w, 0)
}

func (sh *Shell) expandWords(ctx context.Context, ws []word.Word, flags ExpandFlags) ([]string, error) {
	var out []string
	for _, w := range ws {
		if sh.Expander == nil {
			out = append(out, w.Literal())
			continue
		}
		parts, err := sh.Expander.Expand(ctx, w, flags)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	return out, nil
}

// PushSource installs l as the new top input layer and returns a function
// that pops it back off — the executor's `sub_parse` entry point (spec §9
// Design Notes: "expose the lexer as a stateful object owned by the parser;
// the executor calls the parser through a sub_parse(kind) -> tree entry
// that internally pushes a new source layer").
func (sh *Shell) PushSource(l *srcstack.Layer) (pop func()) {
	sh.Reader.Push(l)
	return func() { sh.Reader.Pop() }
}

// SubParse recursively parses body as a complete program, for command
// substitution, `eval`, dot-scripts, and function bodies alike (spec §2
// "The Lexer is re-entered recursively inside $(...) ... each recursion
// pushes a new source layer").
func (sh *Shell) SubParse(name, body string) (*Node, error) {
	pop := sh.PushSource(srcstack.NewString(name, body))
	defer pop()
	p := &parser{sh: sh}
	return p.parseProgram()
}

