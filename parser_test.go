package mksh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTest(t *testing.T, body string) *Node {
	t.Helper()
	sh := NewShell()
	n, err := sh.SubParse("t", body)
	require.NoError(t, err)
	return n
}

func argLits(n *Node) []string {
	out := make([]string, len(n.Args))
	for i, w := range n.Args {
		out[i] = w.Literal()
	}
	return out
}

func TestParseSimpleCommand(t *testing.T) {
	n := parseTest(t, "echo hello world\n")
	require.NotNil(t, n)
	require.Equal(t, TCom, n.Tag)
	assert.Equal(t, []string{"echo", "hello", "world"}, argLits(n))
}

func TestParseAssignmentOnlyCommand(t *testing.T) {
	n := parseTest(t, "a=1 b=2\n")
	require.Equal(t, TCom, n.Tag)
	assert.Empty(t, n.Args)
	require.Len(t, n.Vars, 2)
}

func TestParseAssignmentPrefixThenArgs(t *testing.T) {
	n := parseTest(t, "a=1 echo hi\n")
	require.Equal(t, TCom, n.Tag)
	require.Len(t, n.Vars, 1)
	assert.Equal(t, []string{"echo", "hi"}, argLits(n))
}

func TestParseAssignmentRHSKeepsSubstitutionMarkers(t *testing.T) {
	n := parseTest(t, "x=$HOME\n")
	require.Len(t, n.Vars, 1)
	_, val, ok := splitAssignment(n.Vars[0])
	require.True(t, ok)
	// A flattened literal would read "$HOME" verbatim; the unflattened
	// word must instead carry a substitution marker rather than the bytes
	// '$','H','O','M','E' as plain Ordinary runes.
	assert.NotEqual(t, "$HOME", val.Literal())
}

func TestParseList(t *testing.T) {
	n := parseTest(t, "true; false\n")
	require.Equal(t, TList, n.Tag)
	require.Equal(t, TCom, n.Left.Tag)
	require.Equal(t, TCom, n.Right.Tag)
	assert.Equal(t, []string{"true"}, argLits(n.Left))
	assert.Equal(t, []string{"false"}, argLits(n.Right))
}

func TestParseAndOr(t *testing.T) {
	n := parseTest(t, "true && false || echo last\n")
	// left-associative: (true && false) || echo last
	require.Equal(t, TOr, n.Tag)
	require.Equal(t, TAnd, n.Left.Tag)
	assert.Equal(t, []string{"echo", "last"}, argLits(n.Right))
}

func TestParsePipeline(t *testing.T) {
	n := parseTest(t, "echo hi | wc -l\n")
	require.Equal(t, TPipe, n.Tag)
	assert.Equal(t, []string{"echo", "hi"}, argLits(n.Left))
	assert.Equal(t, []string{"wc", "-l"}, argLits(n.Right))
}

func TestParsePipelineBang(t *testing.T) {
	n := parseTest(t, "! true\n")
	require.Equal(t, TBang, n.Tag)
	assert.Equal(t, []string{"true"}, argLits(n.Left))
}

func TestParseCoprocWithoutFollowingCommand(t *testing.T) {
	n := parseTest(t, "cat |&\n")
	require.Equal(t, TCoproc, n.Tag)
}

func TestParseMergedStreamPipe(t *testing.T) {
	n := parseTest(t, "cmd1 |& cmd2\n")
	require.Equal(t, TPipe, n.Tag)
	assert.Equal(t, byte('&'), n.CharFlag)
}

func TestParseIfElif(t *testing.T) {
	n := parseTest(t, "if true; then echo a; elif false; then echo b; else echo c; fi\n")
	require.Equal(t, TIf, n.Tag)
	require.NotNil(t, n.Else)
	assert.Equal(t, TElif, n.Else.Tag)
	require.NotNil(t, n.Else.Else)
	assert.Equal(t, []string{"echo", "c"}, argLits(n.Else.Else))
}

func TestParseFor(t *testing.T) {
	n := parseTest(t, "for i in 1 2 3; do echo $i; done\n")
	require.Equal(t, TFor, n.Tag)
	assert.Equal(t, "i", n.Str)
	require.Len(t, n.Args, 3)
}

func TestParseForNoWordList(t *testing.T) {
	n := parseTest(t, "for i; do echo $i; done\n")
	require.Equal(t, TFor, n.Tag)
	assert.Nil(t, n.Args)
}

func TestParseHeredocStripsLeadingTabs(t *testing.T) {
	n := parseTest(t, "cat <<-EOF\n\t\thello\n\tEOF\n")
	require.Equal(t, TCom, n.Tag)
	require.Len(t, n.IOAct, 1)
	assert.Equal(t, "hello\n", string(n.IOAct[0].Heredoc))
}

func TestParseHeredocQuotedDelimiterStoresVerbatim(t *testing.T) {
	n := parseTest(t, "cat <<'EOF'\n$HOME\\n\nEOF\n")
	require.Len(t, n.IOAct, 1)
	assert.Equal(t, "$HOME\\n\n", string(n.IOAct[0].Heredoc))
}

func TestParseHeredocUnclosedIsLexError(t *testing.T) {
	sh := NewShell()
	_, err := sh.SubParse("t", "cat <<EOF\nhello\n")
	require.Error(t, err)
}

func TestParseHereString(t *testing.T) {
	n := parseTest(t, "cat <<< hi\n")
	require.Len(t, n.IOAct, 1)
	assert.Equal(t, "hi\n", string(n.IOAct[0].Heredoc))
}

func TestParseWhile(t *testing.T) {
	n := parseTest(t, "while true; do echo x; done\n")
	require.Equal(t, TWhile, n.Tag)
}

func TestParseUntil(t *testing.T) {
	n := parseTest(t, "until false; do echo x; done\n")
	require.Equal(t, TUntil, n.Tag)
}

func TestParseCaseClausesAndTerminators(t *testing.T) {
	n := parseTest(t, "case $x in a) echo a;& b) echo b;; *) echo z;; esac\n")
	require.Equal(t, TCase, n.Tag)
	first := n.Left
	require.NotNil(t, first)
	assert.Equal(t, byte('&'), first.CharFlag)
	second := first.Right
	require.NotNil(t, second)
	assert.Equal(t, byte(0), second.CharFlag)
	third := second.Right
	require.NotNil(t, third)
	assert.Nil(t, third.Right)
}

func TestParseBraceGroup(t *testing.T) {
	n := parseTest(t, "{ echo a; echo b; }\n")
	require.Equal(t, TBrace, n.Tag)
	require.Equal(t, TList, n.Left.Tag)
}

func TestParseSubshell(t *testing.T) {
	n := parseTest(t, "(echo a)\n")
	require.Equal(t, TParen, n.Tag)
}

func TestParsePosixFunctionDef(t *testing.T) {
	n := parseTest(t, "greet() { echo hi; }\n")
	require.Equal(t, TFunct, n.Tag)
	assert.Equal(t, "greet", n.Str)
	assert.False(t, n.KshFunc)
}

func TestParseKshFunctionDef(t *testing.T) {
	n := parseTest(t, "function greet { echo hi; }\n")
	require.Equal(t, TFunct, n.Tag)
	assert.Equal(t, "greet", n.Str)
	assert.True(t, n.KshFunc)
}

func TestParseArithCommandSugar(t *testing.T) {
	n := parseTest(t, "((x = 1 + 2))\n")
	require.Equal(t, TCom, n.Tag)
	require.NotEmpty(t, n.Args)
	assert.Equal(t, "let", n.Args[0].Literal())
}

func TestParseDBracketKeepsOperandWords(t *testing.T) {
	n := parseTest(t, "[[ $x = bar ]]\n")
	require.Equal(t, TDBracket, n.Tag)
	require.Len(t, n.Args, 3)
	assert.Equal(t, "=", n.Args[1].Literal())
}

func TestParseAsyncTrailingAmp(t *testing.T) {
	n := parseTest(t, "sleep 1 &\n")
	require.Equal(t, TAsync, n.Tag)
}
