package mksh

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Distrotech/mksh/internal/panicerr"
	"github.com/Distrotech/mksh/internal/srcstack"
)

// fork returns a shallow copy of sh suitable for running one side of a
// pipeline (or a coprocess) concurrently with the rest of the tree: a fresh
// input-source stack/lexer/environment-frame chain of its own (so a nested
// command substitution lexed on one pipeline stage never races with another
// stage's), but the same Symbols/Funcs/Builtins/Expander/Glob/Host
// collaborators the parent uses, matching this core's documented
// not-a-real-fork simplification (spec §9 Design Notes "Concurrency model":
// pipeline stages run as errgroup-coordinated goroutines, not real OS
// processes, except for genuine external commands which still go through
// ProcessHost).
func (sh *Shell) fork() *Shell {
	clone := *sh
	clone.Stack = srcstack.Stack{}
	clone.Reader = NewReader(&clone.Stack)
	clone.Lexer = NewLexer(clone.Reader, clone.lookupAlias)
	clone.env = nil
	clone.Positional = append([]string(nil), sh.Positional...)
	if _, ok := sh.Expander.(*stdExpander); ok {
		clone.Expander = &stdExpander{sh: &clone}
	}
	clone.Lexer.SetExpander(&clone)
	return &clone
}

// execPipe runs a two-stage (or, left-recursively, N-stage) pipeline: each
// side gets its own forked Shell, connected by a real OS pipe via the
// ProcessHost collaborator, run concurrently under an errgroup.Group (spec
// §4.4 "TPIPE: connect left's stdout to right's stdin via pipe; run both
// concurrently; PIPESTATUS records every stage's exit code"). CharFlag=='&'
// marks the bash-style `|&` merged-stream form, which additionally
// redirects the left stage's stderr into the pipe.
func (sh *Shell) execPipe(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	r, w, err := sh.Host.Pipe()
	if err != nil {
		return 1, err
	}

	left := sh.fork()
	right := sh.fork()

	g, gctx := errgroup.WithContext(ctx)
	statuses := make([]int, 2)

	g.Go(func() error {
		// panicerr.Recover keeps one pipeline stage's panic (an escaped
		// builtin panic, a nil-collaborator deref) from taking down the
		// whole errgroup/process with it — it surfaces as this stage's own
		// error instead, the same isolation a real forked child gets for
		// free from the process boundary (spec §9 Design Notes: "never as
		// exceptions thrown across process boundaries").
		return panicerr.Recover("pipeline-left", func() error {
			defer left.Host.Close(w)
			left.pushEnv(FrameSubshell)
			defer left.popEnv()
			if err := left.installFD(1, dupOrSelf(left, w)); err != nil {
				return err
			}
			if n.CharFlag == '&' {
				if err := left.installFD(2, dupOrSelf(left, w)); err != nil {
					return err
				}
			}
			status, err := left.execute(gctx, n.Left, flags|XErrok|XPipeO)
			statuses[0] = status
			return ignoreExit(err)
		})
	})

	g.Go(func() error {
		return panicerr.Recover("pipeline-right", func() error {
			defer right.Host.Close(r)
			right.pushEnv(FrameSubshell)
			defer right.popEnv()
			if err := right.installFD(0, dupOrSelf(right, r)); err != nil {
				return err
			}
			status, err := right.execute(gctx, n.Right, flags&^XErrok|XPipeI)
			statuses[1] = status
			return ignoreExit(err)
		})
	})

	werr := g.Wait()
	if n.Left.Tag == TPipe {
		// a | b | c is TPipe{TPipe{a, b}, c}: the left stage's own
		// execPipe already recorded a and b on the forked left Shell.
		statuses = append(append([]int(nil), left.PipeStatus...), statuses[1])
	}
	sh.PipeStatus = statuses
	status := statuses[len(statuses)-1]
	if werr != nil {
		if sig, ok := asSignal(werr); ok {
			return status, sig
		}
		return status, werr
	}
	return status, nil
}

// dupOrSelf hands installFD an fd number it owns a reference to; since r/w
// came from the parent's Host.Pipe(), not the forked Shell's own Host
// bookkeeping, this duplicates it first so each side's installFD/close
// accounting stays self-consistent.
func dupOrSelf(sh *Shell, fd int) int {
	d, err := sh.Host.Dup(fd)
	if err != nil {
		return fd
	}
	return d
}

// ignoreExit lets an Exit/Leave Signal terminate just this pipeline stage's
// goroutine rather than failing the whole errgroup (spec §4.6 "LEAVE
// terminates a forked child": each pipeline stage is, conceptually, a
// forked child whose own EXIT/LEAVE unwind is local to it).
func ignoreExit(err error) error {
	if err == nil {
		return nil
	}
	if sig, ok := asSignal(err); ok {
		if sig.Class == Exit || sig.Class == Leave {
			return nil
		}
	}
	return err
}

// execCoproc starts n.Left as a standing coprocess (spec §4.4 "TCOPROC:
// like a backgrounded pipeline stage whose stdin/stdout are reserved fds
// the rest of the script can read/write"), rejecting a second concurrent
// one per CoprocExistsError (spec §4.4 "reject if a live coprocess
// exists").
func (sh *Shell) execCoproc(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	if sh.coproc != nil {
		select {
		case <-sh.coproc.done:
		default:
			return 1, CoprocExistsError{}
		}
	}

	inR, inW, err := sh.Host.Pipe()
	if err != nil {
		return 1, err
	}
	outR, outW, err := sh.Host.Pipe()
	if err != nil {
		return 1, err
	}

	child := sh.fork()
	done := make(chan struct{})
	go func() {
		defer close(done)
		panicerr.Recover("coprocess", func() error {
			child.pushEnv(FrameSubshell)
			defer child.popEnv()
			child.installFD(0, dupOrSelf(child, inR))
			child.installFD(1, dupOrSelf(child, outW))
			child.Host.Close(inW)
			child.Host.Close(outR)
			_, err := child.execute(ctx, n.Left, flags|XErrok)
			return ignoreExit(err)
		})
	}()

	sh.coproc = &coprocHandle{in: inW, out: outR, done: done}
	return 0, nil
}

// coprocHandle tracks the one live coprocess's pipe ends (spec §3 "a
// reserved pair of fds for the coprocess's stdin/stdout"); read/write access
// to them from ordinary redirections (e.g. `print -p`, `read -p`) belongs to
// the out-of-scope full builtin table and is not wired further here.
type coprocHandle struct {
	in, out int
	done    <-chan struct{}
}
