package word_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Distrotech/mksh/word"
)

func TestWordBalanced(t *testing.T) {
	var w word.Word
	w = w.Append('a', false)
	w = w.Open(word.OpenSubst, 0)
	w = w.Append('b', false)
	w = w.Close(word.CloseSubst)
	w = w.Terminate()
	assert.True(t, w.Balanced())
}

func TestWordUnbalancedMismatchedCloser(t *testing.T) {
	var w word.Word
	w = w.Open(word.OpenQuote, 0)
	w = w.Append('a', true)
	w = w.Close(word.CloseSubst)
	w = w.Terminate()
	assert.False(t, w.Balanced())
}

func TestWordLiteralDropsMarkers(t *testing.T) {
	var w word.Word
	w = w.Open(word.OpenQuote, 0)
	w = w.Append('h', true)
	w = w.Append('i', true)
	w = w.Close(word.CloseQuote)
	w = w.Terminate()
	assert.Equal(t, "hi", w.Literal())
}

func TestWordIsPlainIdentifier(t *testing.T) {
	mk := func(s string) word.Word {
		var w word.Word
		for _, b := range []byte(s) {
			w = w.Append(b, false)
		}
		return w.Terminate()
	}
	assert.True(t, mk("foo_bar2").IsPlainIdentifier())
	assert.False(t, mk("2foo").IsPlainIdentifier())
	assert.False(t, mk("foo-bar").IsPlainIdentifier())
}

func TestWordHasUnquotedRespectsDepth(t *testing.T) {
	var w word.Word
	w = w.Open(word.OpenQuote, 0)
	w = w.Append('$', true)
	w = w.Close(word.CloseQuote)
	w = w.Append('$', false)
	w = w.Terminate()
	assert.True(t, w.HasUnquoted('$'))

	var w2 word.Word
	w2 = w2.Open(word.OpenQuote, 0)
	w2 = w2.Append('$', true)
	w2 = w2.Close(word.CloseQuote)
	w2 = w2.Terminate()
	assert.False(t, w2.HasUnquoted('$'))
}
