package srcstack_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Distrotech/mksh/internal/srcstack"
)

func readAll(t *testing.T, l *srcstack.Layer) string {
	t.Helper()
	var out []byte
	for {
		b, err := l.ReadByte()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, b)
	}
	return string(out)
}

func TestWordsLayerSpacesAndTrailingNewline(t *testing.T) {
	l := srcstack.NewWords("$@", []string{"a", "bb", "ccc"})
	assert.Equal(t, "a bb ccc\n", readAll(t, l))
}

func TestStackIsLIFO(t *testing.T) {
	var s srcstack.Stack
	a := srcstack.NewString("a", "A")
	b := srcstack.NewString("b", "B")
	s.Push(a)
	s.Push(b)
	assert.Equal(t, b, s.Top())
	assert.Equal(t, b, s.Pop())
	assert.Equal(t, a, s.Top())
	assert.Equal(t, 1, s.Len())
}

func TestAliasRecursionGuardSeesThroughReread(t *testing.T) {
	var s srcstack.Stack
	s.Push(srcstack.NewAlias("ll", "ls -l"))
	s.Push(srcstack.NewReread([]byte{' '}))
	assert.True(t, s.HasAliasOnStack("ll"))
	assert.False(t, s.HasAliasOnStack("other"))
}

func TestRereadLayerUnwindsToPop(t *testing.T) {
	l := srcstack.NewReread([]byte("x"))
	b, err := l.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)
	_, err = l.ReadByte()
	assert.Equal(t, io.EOF, err)
}
