package mksh

import (
	"context"
)

// ExecFlags steers one execute() call the way the teacher's interpreter
// threads a flag word through its eval loop (spec §4.4 "ExecFlags bitset
// {XFORK, XEXEC, XBGND, XPIPEI, XPIPEO, XPIPEST, XERROK, XTIME, XXCOM,
// XCOPROC, XPCLOSE, XCCLOSE}").
type ExecFlags uint32

const (
	// XFork marks a node whose command should run in a forked-off
	// environment (a pipeline stage, an async list) rather than the
	// caller's own.
	XFork ExecFlags = 1 << iota
	// XExec permits tail-call replacement of the running process by the
	// final command of a simple list (not exercised by this in-process
	// core; external commands always go through ProcessHost.Start/Wait).
	XExec
	// XBgnd marks a `... &` asynchronous command.
	XBgnd
	// XPipeI marks a command whose stdin is the read end of a pipe.
	XPipeI
	// XPipeO marks a command whose stdout is the write end of a pipe.
	XPipeO
	// XPipeSt requests that PIPESTATUS be recorded for this command.
	XPipeSt
	// XErrok suppresses the errexit check for this command's own status
	// (spec §4.4 "errexit exemptions": the left side of && / ||, a
	// pipeline's non-final stages, and commands wrapped in ! or time).
	XErrok
	// XTime marks a `time` wrapped pipeline.
	XTime
	// XXcom marks a command substitution's temporary execution context.
	XXcom
	// XCoproc marks a `|&` coprocess.
	XCoproc
	// XPclose instructs the caller to close the inherited pipe-read fd
	// after this command starts.
	XPclose
	// XCclose instructs the caller to close the inherited pipe-write fd
	// after this command starts.
	XCclose
)

// Exec runs a parsed Command Tree to completion and records its status in
// sh.Status, the shell's single public entry point into the Tree Executor
// (spec §4.4). Callers that need errexit/XTRACE to behave as though this
// were a sub-command (command substitution, eval) should increment
// sh.inEval around the call themselves; Exec does not do so on their behalf.
func (sh *Shell) Exec(ctx context.Context, n *Node) (int, error) {
	if n == nil {
		sh.Status = 0
		return 0, nil
	}
	status, err := sh.execute(ctx, n, 0)
	if sig, ok := asSignal(err); ok && sig.Class != Exit {
		// Nothing structurally claimed this signal (a stray top-level
		// break/continue/return outside any loop/function). execute()'s own
		// defer chain has already popped every frame it pushed, so this is
		// ordinarily a no-op; it's the documented fallback for any frame an
		// unusual control path (a panicking goroutine, say) left dangling
		// (spec §4.6 "unwind(c) pops frames until a handler claims c").
		sh.unwindTo(sig)
	}
	sh.Status = status
	return status, err
}

// execute is the Tree Executor's single recursive entry point (spec §4.4
// "execute(node, flags)"). It pushes exactly one EXEC environment frame and
// defers exactly one pop, so every fd save/temp-file registration made
// while running n (directly, or transitively by a nested execute call that
// itself obeys the same discipline) is undone when this call returns by any
// path — normal return, an early redirection-error return, or a panicking
// builtin unwound by the recover in runBuiltin.
func (sh *Shell) execute(ctx context.Context, n *Node, flags ExecFlags) (status int, err error) {
	sh.pushEnv(FrameExec)
	defer sh.popEnv()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch n.Tag {
	case TCom:
		status, err = sh.execCom(ctx, n, flags)
	case TExec:
		status, err = sh.execExternal(ctx, n, flags)
	case TParen:
		status, err = sh.execParen(ctx, n, flags)
	case TPipe:
		status, err = sh.execPipe(ctx, n, flags)
	case TCoproc:
		status, err = sh.execCoproc(ctx, n, flags)
	case TList:
		status, err = sh.execList(ctx, n, flags)
	case TAsync:
		status, err = sh.execAsync(ctx, n, flags)
	case TAnd, TOr:
		status, err = sh.execAndOr(ctx, n, flags)
	case TBang:
		status, err = sh.execBang(ctx, n, flags)
	case TDBracket:
		status, err = sh.execDBracket(ctx, n, flags)
	case TFor, TSelect:
		status, err = sh.execFor(ctx, n, flags)
	case TWhile, TUntil:
		status, err = sh.execLoop(ctx, n, flags)
	case TIf, TElif:
		status, err = sh.execIf(ctx, n, flags)
	case TCase:
		status, err = sh.execCase(ctx, n, flags)
	case TBrace:
		status, err = sh.execute(ctx, n.Left, flags)
	case TFunct:
		status, err = sh.execFunctDef(ctx, n, flags)
	case TTime:
		status, err = sh.execTime(ctx, n, flags)
	default:
		status, err = 0, nil
	}

	if err != nil {
		return status, err
	}

	// TPipe already recorded its own multi-stage PIPESTATUS (exec_pipe.go)
	// and TCOPROC leaves PIPESTATUS as it was; every other node is a
	// single-stage "pipeline" of one
	// (spec §8 "PIPESTATUS ... length n in left-to-right order").
	if n.Tag != TPipe && n.Tag != TCoproc {
		sh.PipeStatus = []int{status}
	}

	// An &&/||/!/time node's own status is exempt: whatever part of it ran
	// without XErrok has already been tested for errexit.
	if status != 0 && flags&XErrok == 0 && sh.inEval == 0 && sh.ErrExit &&
		n.Tag != TAnd && n.Tag != TOr && n.Tag != TBang && n.Tag != TTime {
		return status, Unwind(Exit, status)
	}
	return status, nil
}

// redirect applies n's redirections, in order, within the caller's already
// pushed frame (spec §4.4 step "apply ioact redirections via the
// Redirection Engine").
func (sh *Shell) redirect(ctx context.Context, n *Node) error {
	for _, io := range n.IOAct {
		if err := sh.IOSetup(ctx, io); err != nil {
			return err
		}
	}
	return nil
}

// assign applies n's leading NAME=value assignment words (spec §3 "vars";
// §4.4 "Assignment handling"). This core's SymbolTable has no real scoping
// (symtab.go, spec §1 Non-goals), so both the KeepAsn and temporary-overlay
// forms reduce to the same direct Set.
func (sh *Shell) assign(ctx context.Context, n *Node) error {
	for _, v := range n.Vars {
		name, val, ok := splitAssignment(v)
		if !ok {
			continue
		}
		expanded, err := sh.expandOne(ctx, val)
		if err != nil {
			return err
		}
		if err := sh.Symbols.Set(name, Value{Scalar: expanded}, 0); err != nil {
			return err
		}
		sh.Xtracef("%s=%s", name, expanded)
	}
	return nil
}

func (sh *Shell) execList(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	if status, err := sh.execute(ctx, n.Left, flags); err != nil {
		return status, err
	}
	return sh.execute(ctx, n.Right, flags)
}

func (sh *Shell) execAndOr(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	status, err := sh.execute(ctx, n.Left, flags|XErrok)
	if err != nil {
		return status, err
	}
	takeRight := (n.Tag == TAnd) == (status == 0)
	if !takeRight {
		return status, nil
	}
	return sh.execute(ctx, n.Right, flags)
}

func (sh *Shell) execBang(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	status, err := sh.execute(ctx, n.Left, flags|XErrok)
	if err != nil {
		return status, err
	}
	return boolStatus(status != 0), nil
}

// execDBracket expands each `[[ ... ]]` operand word, then hands the
// resulting field list to the minimal fallback evaluator (spec §4.4
// "TDBRACKET: dispatch to the [[ ... ]] evaluator via a small visitor
// interface" — this core provides a direct implementation rather than a
// separate collaborator interface, since no pack example exercises such a
// visitor shape).
func (sh *Shell) execDBracket(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	fields := make([]string, 0, len(n.Args))
	for _, w := range n.Args {
		lit := w.Literal()
		switch lit {
		case "&&", "||", "!", "=", "==", "!=", "-eq", "-ne", "-lt", "-le", "-gt", "-ge",
			"-z", "-n", "-e", "-f", "-d", "-r", "-w", "-x":
			fields = append(fields, lit)
			continue
		}
		s, err := sh.expandOne(ctx, w)
		if err != nil {
			return 1, err
		}
		fields = append(fields, s)
	}
	return evalDBracketFields(sh, fields), nil
}

// execFunctDef installs a function definition in the Funcs table (spec §4.4
// "TFUNCT: install the body under name in the function table").
func (sh *Shell) execFunctDef(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	sh.Funcs[n.Str] = n
	return 0, nil
}

// execTime runs the wrapped pipeline, exempting it from errexit the way a
// bare `!`-negated or `&&`/`||`-left command is (spec §4.4 "TTIME"). It
// does not itself measure or print elapsed wall time: timing output is
// part of the out-of-scope line-editor/prompt surface (spec §1), not a
// collaborator this core owns.
func (sh *Shell) execTime(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	status, err := sh.execute(ctx, n.Left, flags|XErrok)
	return status, err
}
