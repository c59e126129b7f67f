package mksh

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// stdBuiltins is the default, minimal-but-real BuiltinRegistry collaborator:
// just enough of the Korn/POSIX builtin surface (spec §1 Non-goals: "no full
// builtin table ... a small set sufficient to exercise the executor") to
// drive a tree end to end standalone.
type stdBuiltins struct {
	table map[string]Builtin
}

func newStdBuiltins() *stdBuiltins {
	b := &stdBuiltins{table: make(map[string]Builtin)}
	b.register(":", SpecBI|KeepAsn, biColon)
	b.register("true", 0, biTrue)
	b.register("false", 0, biFalse)
	b.register("echo", 0, biEcho)
	b.register("cd", 0, biCd)
	b.register("pwd", 0, biPwd)
	b.register("exit", SpecBI, biExit)
	b.register("return", SpecBI, biReturn)
	b.register("break", SpecBI, biBreak)
	b.register("continue", SpecBI, biContinue)
	b.register("shift", SpecBI, biShift)
	b.register("eval", SpecBI|KeepAsn, biEval)
	b.register("set", SpecBI|KeepAsn, biSet)
	b.register("export", SpecBI|KeepAsn, biExport)
	b.register("unset", SpecBI, biUnset)
	b.register("read", 0, biRead)
	b.register("trap", SpecBI, biTrap)
	b.register("typeset", SpecBI|KeepAsn, biTypeset)
	b.register("test", 0, biTest)
	b.register("[", 0, biTest)
	b.register("let", 0, biLet)
	return b
}

func (b *stdBuiltins) register(name string, flags BuiltinFlags, fn func(context.Context, *Shell, []string) int) {
	b.table[name] = Builtin{Flags: flags, Fn: fn}
}

func (b *stdBuiltins) Lookup(name string) (Builtin, bool) {
	bi, ok := b.table[name]
	return bi, ok
}

func biColon(ctx context.Context, sh *Shell, argv []string) int { return 0 }

func biTrue(ctx context.Context, sh *Shell, argv []string) int { return 0 }

func biFalse(ctx context.Context, sh *Shell, argv []string) int { return 1 }

// biEcho implements a plain POSIX echo (no -e/-n extensions; spec leaves the
// full option surface to the out-of-scope builtin table).
func biEcho(ctx context.Context, sh *Shell, argv []string) int {
	fmt.Fprintln(os.Stdout, strings.Join(argv[1:], " "))
	return 0
}

func biCd(ctx context.Context, sh *Shell, argv []string) int {
	dir := ""
	if len(argv) > 1 {
		dir = argv[1]
	} else {
		dir = os.Getenv("HOME")
	}
	if err := os.Chdir(dir); err != nil {
		sh.Warnf("cd: %v", err)
		return 1
	}
	return 0
}

func biPwd(ctx context.Context, sh *Shell, argv []string) int {
	wd, err := os.Getwd()
	if err != nil {
		sh.Warnf("pwd: %v", err)
		return 1
	}
	fmt.Fprintln(os.Stdout, wd)
	return 0
}

// biExit unwinds the EXIT class (spec §4.6 "EXIT": "exit [n] unwinds to the
// top"); the parsed status, or $? when none given.
func biExit(ctx context.Context, sh *Shell, argv []string) int {
	status := sh.Status
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			status = n
		}
	}
	panic(Unwind(Exit, status))
}

func biReturn(ctx context.Context, sh *Shell, argv []string) int {
	status := sh.Status
	if len(argv) > 1 {
		if n, err := strconv.Atoi(argv[1]); err == nil {
			status = n
		}
	}
	panic(Unwind(Return, status))
}

func biBreak(ctx context.Context, sh *Shell, argv []string) int {
	n := 1
	if len(argv) > 1 {
		if v, err := strconv.Atoi(argv[1]); err == nil {
			n = v
		}
	}
	sig := Unwind(Break, 0)
	sig.N = n
	panic(sig)
}

func biContinue(ctx context.Context, sh *Shell, argv []string) int {
	n := 1
	if len(argv) > 1 {
		if v, err := strconv.Atoi(argv[1]); err == nil {
			n = v
		}
	}
	sig := Unwind(Continue, 0)
	sig.N = n
	panic(sig)
}

func biShift(ctx context.Context, sh *Shell, argv []string) int {
	n := 1
	if len(argv) > 1 {
		if v, err := strconv.Atoi(argv[1]); err == nil {
			n = v
		}
	}
	if n > len(sh.Positional) {
		return 1
	}
	sh.Positional = sh.Positional[n:]
	return 0
}

// biEval re-lexes/parses/executes its arguments joined by a space, in the
// caller's own environment frame (spec §4.4 "eval": "re-enters the lexer on
// the joined argument text, in the current environment").
func biEval(ctx context.Context, sh *Shell, argv []string) int {
	body := strings.Join(argv[1:], " ")
	tree, err := sh.SubParse("eval", body)
	if err != nil {
		sh.Warnf("eval: %v", err)
		return 2
	}
	sh.inEval++
	status, err := sh.Exec(ctx, tree)
	sh.inEval--
	if err != nil {
		if sig, ok := asSignal(err); ok {
			panic(sig)
		}
		sh.Warnf("eval: %v", err)
		return 1
	}
	return status
}

// biSet implements the `set [-eCx] [--] [args...]` surface this core needs
// to exercise its own option fields directly (spec §4.4, §6 "set -e/-C/-x").
func biSet(ctx context.Context, sh *Shell, argv []string) int {
	args := argv[1:]
	i := 0
	for ; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			i++
			break
		}
		if len(a) < 2 || (a[0] != '-' && a[0] != '+') {
			break
		}
		on := a[0] == '-'
		for _, c := range a[1:] {
			switch c {
			case 'e':
				sh.ErrExit = on
			case 'C':
				sh.NoClobber = on
			case 'x':
				sh.XTrace = on
			}
		}
	}
	if i < len(args) {
		sh.Positional = append([]string(nil), args[i:]...)
	}
	return 0
}

// biExport assigns and marks each `name[=value]` operand Export, or with no
// operands lists exported variables (the latter omitted: spec leaves a full
// variable-listing surface out of scope).
func biExport(ctx context.Context, sh *Shell, argv []string) int {
	for _, a := range argv[1:] {
		name, val, hasVal := strings.Cut(a, "=")
		if hasVal {
			sh.Symbols.Set(name, Value{Scalar: val}, Export)
		} else {
			sh.Symbols.Typeset(name, Export)
		}
	}
	return 0
}

func biUnset(ctx context.Context, sh *Shell, argv []string) int {
	status := 0
	for _, name := range argv[1:] {
		if err := sh.Symbols.Delete(name); err != nil {
			sh.Warnf("unset: %v", err)
			status = 1
		}
	}
	return status
}

// biRead reads one line from stdin, splitting it on runs of whitespace
// (strings.Fields; IFS is not consulted) across the named variables with
// the last absorbing any remainder (spec §6 glossary "read").
func biRead(ctx context.Context, sh *Shell, argv []string) int {
	names := argv[1:]
	if len(names) == 0 {
		names = []string{"REPLY"}
	}
	var sb strings.Builder
	buf := make([]byte, 1)
	any := false
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			any = true
			if buf[0] == '\n' {
				break
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			break
		}
	}
	if !any {
		return 1
	}
	fields := strings.Fields(sb.String())
	for i, name := range names {
		switch {
		case i >= len(fields):
			sh.Symbols.Set(name, Value{}, 0)
		case i == len(names)-1:
			sh.Symbols.Set(name, Value{Scalar: strings.Join(fields[i:], " ")}, 0)
		default:
			sh.Symbols.Set(name, Value{Scalar: fields[i]}, 0)
		}
	}
	return 0
}

// biTrap is a stub recording nothing: signal-trap dispatch belongs to the
// out-of-scope job-control/signal layer (spec §1 Non-goals "no job
// control"); it accepts the syntax so scripts that set traps don't fail
// outright.
func biTrap(ctx context.Context, sh *Shell, argv []string) int { return 0 }

// biTypeset applies declaration flags from a leading '-' option cluster
// (spec §6 "type flags {LOCAL, EXPORT, INTEGER, READONLY, ARRAY}") to each
// remaining NAME operand via the SymbolTable.
func biTypeset(ctx context.Context, sh *Shell, argv []string) int {
	var flags TypeFlags
	args := argv[1:]
	i := 0
	for ; i < len(args) && strings.HasPrefix(args[i], "-"); i++ {
		for _, c := range args[i][1:] {
			switch c {
			case 'x':
				flags |= Export
			case 'i':
				flags |= Integer
			case 'r':
				flags |= ReadOnly
			case 'a':
				flags |= Array
			case 'l':
				flags |= Local
			}
		}
	}
	for _, decl := range args[i:] {
		name, val, hasVal := strings.Cut(decl, "=")
		if hasVal {
			sh.Symbols.Set(name, Value{Scalar: val}, flags)
		} else {
			sh.Symbols.Typeset(name, flags)
		}
	}
	return 0
}

// biTest is a minimal `test`/`[` covering the unary file/string tests and
// the common binary string/integer comparisons (spec §1 Non-goals: the full
// test-expression grammar belongs to [[ ]]'s out-of-scope evaluator; this is
// the plain POSIX `test` utility, not that).
func biTest(ctx context.Context, sh *Shell, argv []string) int {
	args := argv[1:]
	if len(args) > 0 && args[len(args)-1] == "]" {
		args = args[:len(args)-1]
	}
	switch len(args) {
	case 0:
		return 1
	case 1:
		if args[0] == "" {
			return 1
		}
		return 0
	case 2:
		return boolStatus(testUnary(sh, args[0], args[1]))
	case 3:
		return boolStatus(testBinary(args[0], args[1], args[2]))
	default:
		return 2
	}
}

// biLet backs both the `let` utility and the `((expr))` arithmetic command
// the parser rewrites into a `let` call (spec §4.2 "LETPAREN": "historically
// `((expr))` is sugar for `let expr`"): each operand is evaluated in turn,
// and the exit status reflects whether the last one was nonzero.
func biLet(ctx context.Context, sh *Shell, argv []string) int {
	if len(argv) < 2 {
		return 1
	}
	var last int64
	for _, expr := range argv[1:] {
		v, err := sh.arithEval(expr)
		if err != nil {
			sh.Warnf("let: %v", err)
			return 1
		}
		last = v
	}
	return boolStatus(last != 0)
}

func boolStatus(b bool) int {
	if b {
		return 0
	}
	return 1
}

func testUnary(sh *Shell, op, operand string) bool {
	switch op {
	case "-z":
		return operand == ""
	case "-n":
		return operand != ""
	case "-e", "-f", "-d", "-r", "-w", "-x":
		_, err := sh.Host.Stat(operand)
		return err == nil
	default:
		return false
	}
}

func testBinary(a, op, b string) bool {
	switch op {
	case "=", "==":
		return a == b
	case "!=":
		return a != b
	case "-eq", "-ne", "-lt", "-le", "-gt", "-ge":
		na, erra := strconv.Atoi(a)
		nb, errb := strconv.Atoi(b)
		if erra != nil || errb != nil {
			return false
		}
		switch op {
		case "-eq":
			return na == nb
		case "-ne":
			return na != nb
		case "-lt":
			return na < nb
		case "-le":
			return na <= nb
		case "-gt":
			return na > nb
		default:
			return na >= nb
		}
	default:
		return false
	}
}
