package mksh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execTest(t *testing.T, body string, opts ...ShellOption) (*Shell, int, error) {
	t.Helper()
	sh := NewShell(opts...)
	n, err := sh.SubParse("t", body)
	require.NoError(t, err)
	status, execErr := sh.Exec(context.Background(), n)
	return sh, status, execErr
}

func TestExecAssignmentThenReference(t *testing.T) {
	sh, status, err := execTest(t, "a=1 b=$a\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	v, ok := sh.Symbols.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "1", v.Scalar)
}

func TestExecPipelineRecordsPipeStatus(t *testing.T) {
	sh, status, err := execTest(t, "true | false\n")
	require.NoError(t, err)
	assert.Equal(t, 1, status)
	require.Len(t, sh.PipeStatus, 2)
	assert.Equal(t, 0, sh.PipeStatus[0])
	assert.Equal(t, 1, sh.PipeStatus[1])
}

func TestExecForLoopSetsLoopVarEachIteration(t *testing.T) {
	sh, status, err := execTest(t, "for i in 1 2 3; do :; done\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	v, ok := sh.Symbols.Lookup("i")
	require.True(t, ok)
	assert.Equal(t, "3", v.Scalar)
}

func TestExecFunctionReturnStatus(t *testing.T) {
	sh, status, err := execTest(t, "f() { return 7; }\nf\n")
	require.NoError(t, err)
	assert.Equal(t, 7, status)
	_ = sh
}

func TestExecErrexitStopsAfterFailingCommand(t *testing.T) {
	sh, status, err := execTest(t, "false\ntrue\n", WithErrExit(true))
	require.Error(t, err)
	assert.Equal(t, 1, status)
	sig, ok := err.(*Signal)
	require.True(t, ok)
	assert.Equal(t, Exit, sig.Class)
	_ = sh
}

func TestExecErrexitExemptsAndOrLeftSide(t *testing.T) {
	_, status, err := execTest(t, "false && true\n", WithErrExit(true))
	require.NoError(t, err)
	assert.Equal(t, 1, status)
}

func TestExecErrexitExemptsBangWrappedCommand(t *testing.T) {
	_, status, err := execTest(t, "! false\n", WithErrExit(true))
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExecErrexitFiresInsideLoopBody(t *testing.T) {
	// A failing command inside a loop body must still trip errexit (a bug
	// caught and fixed during review: an earlier draft exempted loop
	// bodies from errexit the same way loop conditions are exempted).
	_, status, err := execTest(t, "for i in 1; do false; done\n", WithErrExit(true))
	require.Error(t, err)
	assert.Equal(t, 1, status)
}

func TestExecCaseFallthroughSemicolonAmp(t *testing.T) {
	sh, status, err := execTest(t, "case a in a) x=one;& b) x=two;; esac\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "two", v.Scalar)
}

func TestExecCaseNoFallthroughStopsAtFirstMatch(t *testing.T) {
	sh, _, err := execTest(t, "case a in a) x=one;; b) x=two;; esac\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "one", v.Scalar)
}

func TestExecIfElse(t *testing.T) {
	sh, _, err := execTest(t, "if false; then x=a; else x=b; fi\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "b", v.Scalar)
}

func TestExecWhileLoop(t *testing.T) {
	sh, _, err := execTest(t, "n=0\nwhile [ \"$n\" != 3 ]; do n=$((n+1)); done\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("n")
	require.True(t, ok)
	assert.Equal(t, "3", v.Scalar)
}

func TestExecBreakStopsLoop(t *testing.T) {
	sh, _, err := execTest(t, "for i in 1 2 3; do x=$i; break; done\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "1", v.Scalar)
}

func TestExecContinueSkipsRest(t *testing.T) {
	sh, _, err := execTest(t, "x=0\nfor i in 1 2 3; do if [ \"$i\" = 2 ]; then continue; fi\nx=$i\ndone\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "3", v.Scalar)
}

func TestExecDBracketStringEquality(t *testing.T) {
	_, status, err := execTest(t, "x=bar\n[[ $x = bar ]]\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExecDBracketNegation(t *testing.T) {
	_, status, err := execTest(t, "[[ ! -e /no/such/file/ever ]]\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExecSubshellSharesSymbolTable(t *testing.T) {
	// mapSymbolTable has no real per-subshell scoping (symtab.go), an
	// explicit, documented simplification (DESIGN.md "Pipelines/
	// coprocesses"): a `( ... )` subshell's assignments are visible to the
	// caller afterward, unlike a real forked shell's copy-on-write
	// variable table.
	sh, _, err := execTest(t, "(x=inner)\n")
	require.NoError(t, err)
	v, ok := sh.Symbols.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "inner", v.Scalar)
}

func TestExecAsyncReturnsImmediately(t *testing.T) {
	_, status, err := execTest(t, "sleep 1 &\n")
	require.NoError(t, err)
	assert.Equal(t, 0, status)
}

func TestExecSecondCoprocRejected(t *testing.T) {
	sh := NewShell()
	n1, err := sh.SubParse("t", "cat |&\n")
	require.NoError(t, err)
	_, err = sh.Exec(context.Background(), n1)
	require.NoError(t, err)

	n2, err := sh.SubParse("t", "cat |&\n")
	require.NoError(t, err)
	_, err = sh.Exec(context.Background(), n2)
	require.Error(t, err)
	_, ok := err.(CoprocExistsError)
	assert.True(t, ok)
}
