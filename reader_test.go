package mksh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Distrotech/mksh/internal/srcstack"
)

func newTestReader(body string) *Reader {
	var s srcstack.Stack
	s.Push(srcstack.NewString("t", body))
	return NewReader(&s)
}

func TestGetcUngetcInverse(t *testing.T) {
	r := newTestReader("ab")
	b := r.Getc()
	require.Equal(t, byte('a'), b)
	r.Ungetc(b)
	b2 := r.Getc()
	assert.Equal(t, b, b2)
	assert.Equal(t, byte('b'), r.Getc())
	assert.Equal(t, byte(0), r.Getc())
}

func TestBackslashNewlineFolded(t *testing.T) {
	r := newTestReader("a\\\nb")
	assert.Equal(t, byte('a'), r.Getc())
	assert.Equal(t, byte('b'), r.Getc())
}

func TestBackslashNewlineNotFoldedWhenIgnored(t *testing.T) {
	r := newTestReader("a\\\nb")
	r.SetIgnoreBackslashNewline(true)
	assert.Equal(t, byte('a'), r.Getc())
	assert.Equal(t, byte('\\'), r.Getc())
	assert.Equal(t, byte('\n'), r.Getc())
	assert.Equal(t, byte('b'), r.Getc())
}

func TestRetraceCapturesExactBytesDelivered(t *testing.T) {
	r := newTestReader("abc")
	r.Getc()
	r.PushRetrace()
	r.Getc()
	r.Getc()
	assert.Equal(t, "bc", r.PopRetrace())
}

func TestRetraceUnwindsOnUngetc(t *testing.T) {
	r := newTestReader("ab")
	r.PushRetrace()
	r.Getc()
	b := r.Getc()
	r.Ungetc(b)
	assert.Equal(t, "a", r.PopRetrace())
}

func TestSkipUTF8BOM(t *testing.T) {
	r := newTestReader("\xef\xbb\xbfhello")
	r.SkipUTF8BOM()
	assert.Equal(t, byte('h'), r.Getc())
}

func TestSkipUTF8BOMNoOpWithoutBOM(t *testing.T) {
	r := newTestReader("hello")
	r.SkipUTF8BOM()
	assert.Equal(t, byte('h'), r.Getc())
}

func TestAliasLayerPopsAndHooksNext(t *testing.T) {
	var s srcstack.Stack
	s.Push(srcstack.NewString("base", "tail"))
	r := NewReader(&s)
	var hooked *srcstack.Layer
	r.OnAliasPop(func(next *srcstack.Layer) { hooked = next })
	r.Push(srcstack.NewAlias("ll", "ls"))

	out := []byte{r.Getc(), r.Getc()}
	assert.Equal(t, "ls", string(out))
	// alias body exhausted; next Getc triggers pop + hook, then reads "tail"
	assert.Equal(t, byte('t'), r.Getc())
	assert.NotNil(t, hooked)
}
