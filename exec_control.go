package mksh

import "context"

// execFor runs TFOR/TSELECT: TFor iterates n.Str over each expansion of
// n.Args (or, with none given, over $1.. if Args is nil per spec §4.4
// "TFOR: with no word list, iterate $@"); TSELECT is modeled identically
// here since this core has no interactive menu/PS3 prompt collaborator to
// distinguish it further (spec §1 Non-goals: "no interactive line editing").
func (sh *Shell) execFor(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	items, err := sh.forItems(ctx, n)
	if err != nil {
		return 1, err
	}
	status := 0
	for _, item := range items {
		if err := sh.Symbols.Set(n.Str, Value{Scalar: item}, 0); err != nil {
			return status, err
		}
		s, err := sh.execute(ctx, n.Left, flags)
		status = s
		if err != nil {
			if brk, done := sh.loopUnwind(err); done {
				if brk {
					return status, nil
				}
				continue
			}
			return status, err
		}
	}
	return status, nil
}

func (sh *Shell) forItems(ctx context.Context, n *Node) ([]string, error) {
	if n.Args != nil {
		return sh.expandWords(ctx, n.Args, DoBlank|DoGlob|DoTilde)
	}
	return append([]string(nil), sh.Positional...), nil
}

// execLoop runs TWHILE/TUNTIL: repeatedly evaluate the condition (n.Left)
// and, while it matches the loop's sense, run the body (n.Right) (spec §4.4
// "TWHILE/TUNTIL").
func (sh *Shell) execLoop(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	status := 0
	for {
		condStatus, err := sh.execute(ctx, n.Left, flags|XErrok)
		if err != nil {
			return condStatus, err
		}
		matched := condStatus == 0
		if n.Tag == TUntil {
			matched = !matched
		}
		if !matched {
			return status, nil
		}
		s, err := sh.execute(ctx, n.Right, flags)
		status = s
		if err != nil {
			if brk, done := sh.loopUnwind(err); done {
				if brk {
					return status, nil
				}
				continue
			}
			return status, err
		}
	}
}

// loopUnwind inspects err for a BREAK/CONTINUE Signal targeting this loop
// level, consuming one level of its N count (spec §4.6 "BREAK N/CONTINUE N
// unwind N enclosing loop frames; the Nth one consumes the signal instead
// of re-raising it"). done reports whether err was such a signal (handled
// here, whatever the caller should do next); brk reports break vs continue
// when done is true.
func (sh *Shell) loopUnwind(err error) (brk, done bool) {
	sig, ok := asSignal(err)
	if !ok || (sig.Class != Break && sig.Class != Continue) {
		return false, false
	}
	if sig.N > 1 {
		sig.N--
		return false, false
	}
	return sig.Class == Break, true
}

// execIf runs TIF/TELIF: n.Left is the condition, n.Right the then-branch,
// n.Else either a TELIF node (elif) or a plain else-body (or nil) (spec §4.4
// "TIF/TELIF").
func (sh *Shell) execIf(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	condStatus, err := sh.execute(ctx, n.Left, flags|XErrok)
	if err != nil {
		return condStatus, err
	}
	if condStatus == 0 {
		return sh.execute(ctx, n.Right, flags)
	}
	if n.Else != nil {
		return sh.execute(ctx, n.Else, flags)
	}
	return 0, nil
}

// execCase runs TCASE: expand the scrutinee once, then walk the TPAT clause
// chain (n.Left), matching each clause's patterns in turn with the
// GlobMatcher collaborator (spec §4.4 "TCASE: match with the glob matcher";
// §3 "charflag for case ;;/;|/;&").
func (sh *Shell) execCase(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	word, err := sh.expandOne(ctx, n.Args[0])
	if err != nil {
		return 1, err
	}
	clause := n.Left
	for clause != nil {
		if sh.caseMatches(ctx, clause, word) {
			status, err := sh.runCaseClause(ctx, clause, word, flags)
			return status, err
		}
		clause = clause.Right
	}
	return 0, nil
}

func (sh *Shell) caseMatches(ctx context.Context, clause *Node, word string) bool {
	for _, pat := range clause.Args {
		p, err := sh.expandOne(ctx, pat)
		if err != nil {
			continue
		}
		if sh.Glob.Match(word, p) {
			return true
		}
	}
	return false
}

// runCaseClause runs a matched clause's body, then honors its terminator:
// plain ;; stops, ;& falls through into the next clause's body unconditionally,
// ;| falls through to the next clause's pattern test (spec §3 "charflag").
func (sh *Shell) runCaseClause(ctx context.Context, clause *Node, word string, flags ExecFlags) (int, error) {
	status := 0
	var err error
	if clause.Left != nil {
		status, err = sh.execute(ctx, clause.Left, flags)
		if err != nil {
			return status, err
		}
	}
	switch clause.CharFlag {
	case '&':
		if clause.Right != nil {
			return sh.runCaseClause(ctx, clause.Right, word, flags)
		}
	case '|':
		if clause.Right != nil && sh.caseMatches(ctx, clause.Right, word) {
			return sh.runCaseClause(ctx, clause.Right, word, flags)
		}
		if clause.Right != nil {
			return sh.execCaseFrom(ctx, clause.Right.Right, word, flags)
		}
	}
	return status, nil
}

// execCaseFrom resumes ordinary pattern-matching case dispatch starting at
// clause, for the ;| "test the next pattern list" fallthrough form.
func (sh *Shell) execCaseFrom(ctx context.Context, clause *Node, word string, flags ExecFlags) (int, error) {
	for clause != nil {
		if sh.caseMatches(ctx, clause, word) {
			return sh.runCaseClause(ctx, clause, word, flags)
		}
		clause = clause.Right
	}
	return 0, nil
}

// execParen runs a `( ... )` subshell on a forked Shell, with its own source
// stack, lexer and environment-frame chain; EXIT/LEAVE unwinding inside it
// is local to the fork and converted to a plain status return. The fork
// shares Symbols and Funcs with the caller, and `cd` changes the whole
// process's working directory, so variable, function and directory changes
// made inside the subshell are not undone when it returns.
func (sh *Shell) execParen(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	child := sh.fork()
	child.pushEnv(FrameSubshell)
	defer child.popEnv()
	status, err := child.execute(ctx, n.Left, flags)
	if err != nil {
		if sig, ok := asSignal(err); ok && (sig.Class == Exit || sig.Class == Leave) {
			return sig.Status, nil
		}
		return status, err
	}
	return status, nil
}

// execAsync runs n.Left in the background: this in-process core cannot
// truly detach a job the way a forked process would, so it starts the
// forked Shell's execution on its own goroutine and returns immediately
// with status 0, the conventional immediate exit status of `cmd &` (spec
// §4.4 "TASYNC"; spec §1 Non-goals: "no job control/job table").
func (sh *Shell) execAsync(ctx context.Context, n *Node, flags ExecFlags) (int, error) {
	child := sh.fork()
	go func() {
		child.pushEnv(FrameSubshell)
		defer child.popEnv()
		child.execute(ctx, n.Left, flags|XErrok)
	}()
	return 0, nil
}
