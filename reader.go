package mksh

import (
	"bytes"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/Distrotech/mksh/internal/srcstack"
)

// Reader implements the character reader of spec §4.1: getc/ungetc over the
// source stack, with backslash-newline folding, a retrace tape, and BOM
// skip. It is the shell-domain retarget of the teacher's line-tracking
// input plumbing, generalized from sequential rune-reading over a single
// file queue to the eight source layers of spec §3 and to byte
// granularity, since the word encoding (word.Word) operates on bytes, not
// runes.
type Reader struct {
	stack *srcstack.Stack

	// ignoreBackslashNewline suppresses the line-continuation fold; the
	// lexer sets this while inside SQUOTE-like states (spec §4.1).
	ignoreBackslashNewline bool

	retrace []*bytes.Buffer

	// onAliasPop, when set, is called with the new top layer each time an
	// ALIAS layer pops: the hook for re-enabling alias lookup on the layer
	// that follows an ALIAS layer whose body ended in whitespace (spec §4.1).
	onAliasPop func(next *srcstack.Layer)

	bomChecked map[*srcstack.Layer]bool
}

// NewReader returns a Reader over stack.
func NewReader(stack *srcstack.Stack) *Reader {
	return &Reader{stack: stack, bomChecked: make(map[*srcstack.Layer]bool)}
}

// Push installs a new top source layer.
func (r *Reader) Push(l *srcstack.Layer) { r.stack.Push(l) }

// Pop removes and returns the current top source layer.
func (r *Reader) Pop() *srcstack.Layer { return r.stack.Pop() }

// Stack exposes the underlying layer stack for alias recursion checks.
func (r *Reader) Stack() *srcstack.Stack { return r.stack }

// SetIgnoreBackslashNewline toggles line-continuation folding.
func (r *Reader) SetIgnoreBackslashNewline(ignore bool) { r.ignoreBackslashNewline = ignore }

// OnAliasPop installs a hook called whenever an ALIAS layer pops, receiving
// the layer that becomes the new top.
func (r *Reader) OnAliasPop(f func(next *srcstack.Layer)) { r.onAliasPop = f }

// PushRetrace begins recording every byte subsequently returned by Getc.
func (r *Reader) PushRetrace() { r.retrace = append(r.retrace, &bytes.Buffer{}) }

// PopRetrace stops the innermost recording and returns its captured text.
func (r *Reader) PopRetrace() string {
	if len(r.retrace) == 0 {
		return ""
	}
	i := len(r.retrace) - 1
	s := r.retrace[i].String()
	r.retrace = r.retrace[:i]
	return s
}

func (r *Reader) record(b byte) {
	for _, rec := range r.retrace {
		rec.WriteByte(b)
	}
}

func (r *Reader) unrecord() {
	for _, rec := range r.retrace {
		if b := rec.Bytes(); len(b) > 0 {
			rec.Truncate(len(b) - 1)
		}
	}
}

// Getc returns the next byte from the topmost layer, or 0 at true EOF
// (spec §4.1). It performs cross-layer transitions and backslash-newline
// folding transparently.
func (r *Reader) Getc() byte {
	for {
		l := r.stack.Top()
		if l == nil {
			return 0
		}
		b, err := l.ReadByte()
		if err == io.EOF {
			if !r.transition(l) {
				return 0
			}
			continue
		}
		if !r.ignoreBackslashNewline && b == '\\' {
			if nb, nerr := l.ReadByte(); nerr == nil {
				if nb == '\n' {
					l.Line++
					continue // line continuation: swallow both bytes
				}
				l.UnreadByte(nb)
			}
			// a backslash with nothing after it (true EOF) falls through
			// and is recorded/returned like any ordinary byte; there is no
			// following newline to fold away per spec §4.2
		}
		if b == '\n' {
			l.Line++
		}
		r.record(b)
		return b
	}
}

// transition implements the per-layer refill/pop rules of spec §4.1 when a
// layer's ReadByte reports io.EOF. Returns false if the whole stack is
// exhausted.
func (r *Reader) transition(l *srcstack.Layer) bool {
	switch l.Kind {
	case srcstack.Alias:
		r.stack.Pop()
		next := r.stack.Top()
		if next != nil && r.onAliasPop != nil {
			r.onAliasPop(next)
		}
		return next != nil
	case srcstack.Reread:
		r.stack.Pop()
		return r.stack.Top() != nil
	default:
		r.stack.Pop()
		return r.stack.Top() != nil
	}
}

// Ungetc pushes b back so the next Getc returns it. At least one push-back
// is always available (spec §4.1 "ungetc is bounded"): if the current
// layer's own buffer cannot take it, a one-byte REREAD layer is
// synthesised.
func (r *Reader) Ungetc(b byte) {
	r.unrecord()
	l := r.stack.Top()
	if l != nil && l.UnreadByte(b) {
		if b == '\n' && l.Line > 1 {
			l.Line--
		}
		return
	}
	r.stack.Push(srcstack.NewReread([]byte{b}))
}

// SkipUTF8BOM consumes a leading UTF-8 byte-order-mark on the current top
// layer, if present, using golang.org/x/text's BOM sniffing so the same
// detection logic a real text-encoding pipeline would use backs this
// shell-specific corner case (spec §4.1 "skip_utf8_bom").
func (r *Reader) SkipUTF8BOM() {
	l := r.stack.Top()
	if l == nil || r.bomChecked[l] {
		return
	}
	r.bomChecked[l] = true

	var peeked []byte
	for i := 0; i < 3; i++ {
		b, err := l.ReadByte()
		if err != nil {
			break
		}
		peeked = append(peeked, b)
	}
	if len(peeked) == 0 {
		return
	}

	// Detect and strip a UTF-8 (or UTF-16) byte-order-mark the same way a
	// real text-encoding pipeline would, rather than hand-rolling a
	// 3-byte magic-number check.
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, peeked)
	rest := peeked
	if err == nil && len(out) < len(peeked) {
		rest = out
	}
	// A layer's UnreadByte gives back at most one byte, so the bytes that
	// were not a BOM go back as a REREAD layer on top of l instead.
	if len(rest) > 0 {
		rl := srcstack.NewReread(rest)
		r.bomChecked[rl] = true
		r.stack.Push(rl)
	}
}
