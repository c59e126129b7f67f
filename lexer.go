package mksh

import (
	"strconv"
	"strings"

	"github.com/Distrotech/mksh/internal/srcstack"
	"github.com/Distrotech/mksh/token"
	"github.com/Distrotech/mksh/word"
)

// Flags steers next_token's keyword/alias resolution and initial state
// selection (spec §4.2 "Contract: next_token(flags) -> Token").
type Flags uint32

const (
	// FKeyword resolves a plain-identifier word against the reserved-word
	// table.
	FKeyword Flags = 1 << iota
	// FAlias resolves a plain-identifier word against the alias table,
	// guarded by the recursion check over the whole source stack.
	FAlias
	// FVarAsn allows a `name=word` or `name[sub]=word` assignment head and
	// array-subscript copy-through.
	FVarAsn
	FArrayVar
	// FHereDelim starts the lexer directly in word scanning (lexWord)
	// instead of StBase, so no operator token is recognized.
	FHereDelim
	// FOneWord suppresses field splitting downstream; carried through
	// unchanged, consumed by the Expansion collaborator, not the lexer.
	FOneWord
	// FEsacOnly resolves only the "esac" keyword, used while lexing a case
	// pattern where every other reserved word is an ordinary word.
	FEsacOnly
	// FContin treats a bare newline as whitespace instead of terminating
	// the command (used mid-list continuation contexts).
	FContin
)

// Lexer is the stateful, resumable tokenizer of spec §4.2: a Reader plus a
// chunked lex-state-frame stack and pending here-document list.
type Lexer struct {
	rd     *Reader
	frames frameStack

	aliasLookup func(name string) (body string, ok bool)
	expander    HeredocExpander

	pendingHeredocs []*token.IOWord
}

// NewLexer returns a Lexer reading from rd. aliasLookup may be nil, in which
// case FAlias resolution never fires.
func NewLexer(rd *Reader, aliasLookup func(name string) (body string, ok bool)) *Lexer {
	return &Lexer{rd: rd, aliasLookup: aliasLookup}
}

// PendingHeredocs drains the here-documents whose delimiter words have been
// lexed but whose bodies have not yet been collected (spec §4.3, left to
// the Here-Document Collector once a full NEWLINE has been seen).
func (lx *Lexer) PendingHeredocs() []*token.IOWord {
	p := lx.pendingHeredocs
	lx.pendingHeredocs = nil
	return p
}

func (lx *Lexer) curLine() int {
	if l := lx.rd.Stack().Top(); l != nil {
		return l.Line
	}
	return 0
}

// Next produces the next token from the input (spec §4.2 "Contract:
// next_token(flags) -> Token").
func (lx *Lexer) Next(flags Flags) (token.Token, error) {
	if flags&FHereDelim != 0 {
		return lx.lexWord(flags)
	}
	return lx.lexBase(flags)
}

func (lx *Lexer) lexBase(flags Flags) (token.Token, error) {
	for {
		lx.rd.SkipUTF8BOM()
		c := lx.rd.Getc()
		switch c {
		case 0:
			return token.Token{Kind: token.EOF, Line: lx.curLine()}, nil
		case ' ', '\t':
			continue
		case '\n':
			if flags&FContin != 0 {
				continue
			}
			return token.Token{Kind: token.NEWLINE, Line: lx.curLine()}, nil
		case '#':
			for {
				n := lx.rd.Getc()
				if n == 0 || n == '\n' {
					lx.rd.Ungetc(n)
					break
				}
			}
			continue
		case ';':
			n := lx.rd.Getc()
			switch n {
			case ';':
				return token.Token{Kind: token.BREAK, Line: lx.curLine()}, nil
			case '&':
				return token.Token{Kind: token.BRKFT, Line: lx.curLine()}, nil
			case '|':
				return token.Token{Kind: token.BRKEV, Line: lx.curLine()}, nil
			default:
				lx.rd.Ungetc(n)
				return token.Token{Kind: token.SEMI, Line: lx.curLine()}, nil
			}
		case '&':
			n := lx.rd.Getc()
			if n == '&' {
				return token.Token{Kind: token.LOGAND, Line: lx.curLine()}, nil
			}
			lx.rd.Ungetc(n)
			return token.Token{Kind: token.AND, Line: lx.curLine()}, nil
		case '|':
			n := lx.rd.Getc()
			if n == '&' {
				return token.Token{Kind: token.COPROC, Line: lx.curLine()}, nil
			}
			lx.rd.Ungetc(n)
			return token.Token{Kind: token.PIPE, Line: lx.curLine()}, nil
		case '(':
			n := lx.rd.Getc()
			if n == '(' {
				return lx.lexLetParen()
			}
			lx.rd.Ungetc(n)
			return token.Token{Kind: token.LPAREN, Line: lx.curLine()}, nil
		case ')':
			return token.Token{Kind: token.RPAREN, Line: lx.curLine()}, nil
		case '<', '>':
			lx.rd.Ungetc(c)
			return lx.lexRedirOp(flags, 0, false)
		default:
			if isDigit(c) {
				digits := []byte{c}
				for {
					n := lx.rd.Getc()
					if !isDigit(n) {
						lx.rd.Ungetc(n)
						break
					}
					digits = append(digits, n)
				}
				n := lx.rd.Getc()
				if n == '<' || n == '>' {
					lx.rd.Ungetc(n)
					unit, _ := strconv.Atoi(string(digits))
					return lx.lexRedirOp(flags, unit, true)
				}
				lx.rd.Ungetc(n)
				for i := len(digits) - 1; i >= 0; i-- {
					lx.rd.Ungetc(digits[i])
				}
				return lx.lexWord(flags)
			}
			lx.rd.Ungetc(c)
			return lx.lexWord(flags)
		}
	}
}

// lexLetParen implements the `((` arithmetic-command/nested-subshell
// disambiguation of spec §4.2 "LETPAREN": a terminating `))` yields the
// arithmetic body as a single WORD; a lone `)` means the two parens just
// consumed were actually the start of a plain subshell, so the collected
// text is reinjected as a REREAD layer and the caller receives a bare `(`.
func (lx *Lexer) lexLetParen() (token.Token, error) {
	var buf []byte
	depth := 1
	for {
		c := lx.rd.Getc()
		if c == 0 {
			return lx.finishLetExpr(buf), nil
		}
		switch c {
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth != 0 {
				buf = append(buf, c)
				continue
			}
			n := lx.rd.Getc()
			if n == ')' {
				return lx.finishLetExpr(buf), nil
			}
			reinj := make([]byte, 0, len(buf)+2)
			reinj = append(reinj, '(')
			reinj = append(reinj, buf...)
			reinj = append(reinj, ')')
			if n != 0 {
				lx.rd.Ungetc(n)
			}
			for i := len(reinj) - 1; i >= 0; i-- {
				lx.rd.Ungetc(reinj[i])
			}
			return token.Token{Kind: token.LPAREN, Line: lx.curLine()}, nil
		default:
			buf = append(buf, c)
		}
	}
}

func (lx *Lexer) finishLetExpr(buf []byte) token.Token {
	var w word.Word
	w = w.Open(word.OpenQuote, 0)
	for _, b := range buf {
		w = w.Append(b, true)
	}
	w = w.Close(word.CloseQuote)
	w = w.Terminate()
	return token.Token{Kind: token.MDPAREN, Word: w, Line: lx.curLine()}
}

// lexRedirOp lexes one redirection operator and its target/delimiter word
// (spec §3 "IOWord").
func (lx *Lexer) lexRedirOp(flags Flags, unit int, hasUnit bool) (token.Token, error) {
	op := lx.rd.Getc()
	var fl token.IOFlag
	switch op {
	case '<':
		n := lx.rd.Getc()
		switch n {
		case '<':
			n2 := lx.rd.Getc()
			switch n2 {
			case '<':
				fl = token.HereStr
			case '-':
				fl = token.Here | token.Skip
			default:
				lx.rd.Ungetc(n2)
				fl = token.Here
			}
		case '>':
			fl = token.RdWr
		case '&':
			fl = token.Dup | token.Read
		default:
			lx.rd.Ungetc(n)
			fl = token.Read
		}
	case '>':
		n := lx.rd.Getc()
		switch n {
		case '>':
			fl = token.Cat
		case '&':
			fl = token.Dup | token.Write
		case '|':
			fl = token.Clob
		default:
			lx.rd.Ungetc(n)
			fl = token.Write
		}
	}
	if !hasUnit {
		if fl&(token.Read|token.RdWr|token.HereStr|token.Here) != 0 {
			unit = 0
		} else {
			unit = 1
		}
	}

	for {
		c := lx.rd.Getc()
		if c != ' ' && c != '\t' {
			lx.rd.Ungetc(c)
			break
		}
	}

	target, err := lx.lexWord(flags | FVarAsn)
	if err != nil {
		return token.Token{}, err
	}
	io := &token.IOWord{Unit: unit, Flag: fl}
	if fl&(token.Here|token.HereStr) != 0 {
		io.Delim = target.Word
		lx.pendingHeredocs = append(lx.pendingHeredocs, io)
	} else {
		io.Name = target.Word
	}
	return token.Token{Kind: token.REDIR, Redir: io, Line: lx.curLine()}, nil
}

// lexWord accumulates an ordinary word, dispatching into the quote/subst/
// pattern sub-states as it goes (spec §4.2 "WORD").
func (lx *Lexer) lexWord(flags Flags) (token.Token, error) {
	lx.frames.push(frame{state: StWord})
	var w word.Word

	for {
		c := lx.rd.Getc()
		if c == 0 {
			break
		}
		switch c {
		case ' ', '\t', '\n', '|', '&', ';', '<', '>', '(', ')':
			lx.rd.Ungetc(c)
			goto done
		case '\\':
			n := lx.rd.Getc()
			if n != 0 {
				w = w.Append(n, true)
			}
		case '\'':
			lx.frames.push(frame{state: StSquote})
			w = w.Open(word.OpenQuote, 0)
			for {
				n := lx.rd.Getc()
				if n == 0 || n == '\'' {
					break
				}
				w = w.Append(n, true)
			}
			w = w.Close(word.CloseQuote)
			lx.frames.pop()
		case '"':
			lx.frames.push(frame{state: StDquote, inDquote: true})
			w = w.Open(word.OpenQuote, 0)
			w = lx.scanDquoteBody(w)
			w = w.Close(word.CloseQuote)
			lx.frames.pop()
		case '`':
			w = lx.scanBackquote(w, false)
		case '$':
			w = lx.scanDollar(w)
		case '[':
			if flags&(FVarAsn|FArrayVar) != 0 {
				w = lx.scanBracketLiteral(w)
			} else {
				w = w.Append(c, false)
			}
		default:
			if isPatStart(c) {
				n := lx.rd.Getc()
				if n == '(' {
					w = w.Open(word.OpenPat, c)
					w = lx.scanPatternBody(w)
					continue
				}
				lx.rd.Ungetc(n)
			}
			w = w.Append(c, false)
		}
	}
done:
	lx.frames.pop()
	w = w.Terminate()
	return lx.classify(w, flags)
}

// plainLiteral reports the literal text of w, and whether every element is
// an unquoted ordinary byte (no quoting/substitution markers at all) — a
// looser sibling of word.Word.IsPlainIdentifier that drops the
// identifier-character-class restriction, for the single-character
// keywords ("{" / "}" / "!") which aren't identifier-shaped.
func plainLiteral(w word.Word) (string, bool) {
	for _, e := range w {
		if e.Kind != word.Ordinary && e.Kind != word.EOS {
			return "", false
		}
	}
	return w.Literal(), true
}

// classify applies KEYWORD/ALIAS resolution to a terminated plain-identifier
// word (spec §4.2 "Keyword/alias resolution").
func (lx *Lexer) classify(w word.Word, flags Flags) (token.Token, error) {
	lit := w.Literal()
	if flags&FKeyword != 0 {
		if brace, ok := plainLiteral(w); ok && (brace == "{" || brace == "}" || brace == "!") {
			if k, ok := token.Keyword(brace); ok {
				return token.Token{Kind: k, Word: w, KwText: brace, Line: lx.curLine()}, nil
			}
		}
		if w.IsPlainIdentifier() {
			if k, ok := token.Keyword(lit); ok {
				return token.Token{Kind: k, Word: w, KwText: lit, Line: lx.curLine()}, nil
			}
		}
	}
	if flags&FEsacOnly != 0 && lit == "esac" && w.IsPlainIdentifier() {
		return token.Token{Kind: token.KwEsac, Word: w, KwText: lit, Line: lx.curLine()}, nil
	}
	if flags&FAlias != 0 && w.IsPlainIdentifier() && lx.aliasLookup != nil {
		if !lx.rd.Stack().HasAliasOnStack(lit) {
			if body, ok := lx.aliasLookup(lit); ok {
				lx.rd.Push(srcstack.NewAlias(lit, body))
				return lx.Next(flags)
			}
		}
	}
	return token.Token{Kind: token.WORD, Word: w, KwText: lit, Line: lx.curLine()}, nil
}

// scanDquoteBody reads double-quoted content up to (not including) the
// closing quote, expanding $ and backquote substitutions in place (spec
// §4.2 "DQUOTE").
func (lx *Lexer) scanDquoteBody(w word.Word) word.Word {
	for {
		c := lx.rd.Getc()
		if c == 0 || c == '"' {
			return w
		}
		switch c {
		case '\\':
			n := lx.rd.Getc()
			switch n {
			case '$', '`', '"', '\\':
				w = w.Append(n, true)
			case 0:
			default:
				w = w.Append('\\', true)
				w = w.Append(n, true)
			}
		case '$':
			w = lx.scanDollar(w)
		case '`':
			w = lx.scanBackquote(w, true)
		default:
			w = w.Append(c, true)
		}
	}
}

// scanBackquote captures a backquoted command substitution verbatim (its
// tree is built later, when the word is expanded/executed: spec §2 "the
// executor invokes the parser for command substitutions").
func (lx *Lexer) scanBackquote(w word.Word, inDquote bool) word.Word {
	lx.frames.push(frame{state: StBquote, inDquote: inDquote})
	var sb strings.Builder
	for {
		c := lx.rd.Getc()
		if c == 0 || c == '`' {
			break
		}
		if c == '\\' {
			n := lx.rd.Getc()
			switch n {
			case '`', '\\':
				sb.WriteByte(n)
			case 0:
			default:
				sb.WriteByte('\\')
				sb.WriteByte(n)
			}
			continue
		}
		sb.WriteByte(c)
	}
	lx.frames.pop()
	w = w.Open(word.OpenComsub, '`')
	w[len(w)-1].Text = sb.String()
	return w
}

// scanDollar dispatches the `$` forms of spec §4.2 ("DOLLAR_SQUOTE",
// "BRACE"/"QBRACE", backquote/paren substitutions, and the bare
// `$name`/`$1`/`$@` form via scanVarHead).
func (lx *Lexer) scanDollar(w word.Word) word.Word {
	c := lx.rd.Getc()
	switch c {
	case 0:
		return w.Append('$', false)
	case '\'':
		return lx.scanDollarSquote(w)
	case '"':
		return lx.scanDollarDquote(w)
	case '(':
		n := lx.rd.Getc()
		if n == '(' {
			return lx.scanArithSub(w)
		}
		lx.rd.Ungetc(n)
		return lx.scanComsub(w)
	case '{':
		return lx.scanBraceSubst(w)
	default:
		lx.rd.Ungetc(c)
		head := lx.scanVarHead()
		w = w.Open(word.OpenSubst, 0)
		w[len(w)-1].Text = head
		w = w.Close(word.CloseSubst)
		return w
	}
}

// scanDollarSquote reads a $'...' ANSI-C-quoted string, resolving its own
// backslash escapes into literal bytes (spec §4.2 "DOLLAR_SQUOTE").
func (lx *Lexer) scanDollarSquote(w word.Word) word.Word {
	lx.frames.push(frame{state: StDollarSquote})
	w = w.Open(word.OpenQuote, 0)
	for {
		c := lx.rd.Getc()
		if c == 0 || c == '\'' {
			break
		}
		if c == '\\' {
			n := lx.rd.Getc()
			w = w.Append(ansiCEscape(n), true)
			continue
		}
		w = w.Append(c, true)
	}
	w = w.Close(word.CloseQuote)
	lx.frames.pop()
	return w
}

// ansiCEscape maps a $'...' escape letter to its literal byte, defaulting to
// the letter itself for forms this shell has no ANSI-C meaning for.
func ansiCEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case 'a':
		return '\a'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'v':
		return '\v'
	case 'e':
		return 0x1b
	case '\\', '\'', '"':
		return c
	default:
		return c
	}
}

// scanDollarDquote reads a $"..." locale-translated string the same way a
// plain double-quoted string is read (spec §4.2 notes no translation table
// is part of this core; the marker is kept for round-tripping).
func (lx *Lexer) scanDollarDquote(w word.Word) word.Word {
	lx.frames.push(frame{state: StDquote, inDquote: true})
	w = w.Open(word.OpenQuote, 0)
	w = lx.scanDquoteBody(w)
	w = w.Close(word.CloseQuote)
	lx.frames.pop()
	return w
}

// scanComsub reads the balanced body of $(...) verbatim.
func (lx *Lexer) scanComsub(w word.Word) word.Word {
	lx.frames.push(frame{state: StBase, parens: 1})
	text := lx.scanBalanced('(', ')', 1)
	lx.frames.pop()
	w = w.Open(word.OpenComsub, 0)
	w[len(w)-1].Text = text
	return w
}

// scanArithSub reads the balanced body of $((...)) verbatim (spec §4.2
// "DOLLAR_DPAREN").
func (lx *Lexer) scanArithSub(w word.Word) word.Word {
	lx.frames.push(frame{state: StDollarDParen, parens: 2})
	// both opening parens of "$((" are already consumed, so the body is
	// balanced once nesting returns to depth 0 starting from 2. The first
	// of the two closing parens is kept in the captured text, so it is
	// trimmed here.
	text := strings.TrimSuffix(lx.scanBalanced('(', ')', 2), ")")
	lx.frames.pop()
	w = w.Open(word.OpenComsub, 'a')
	w[len(w)-1].Text = text
	return w
}

// scanBraceSubst dispatches the three `${` forms: the Korn value- and
// function-substitutions `${|cmd;}` / `${ cmd;}`, and ordinary parameter
// substitution `${name...}` (spec §4.2 "BRACE"/"QBRACE").
func (lx *Lexer) scanBraceSubst(w word.Word) word.Word {
	c := lx.rd.Getc()
	switch {
	case c == '|':
		lx.frames.push(frame{state: StBrace, parens: 1})
		text := lx.scanBalanced('{', '}', 1)
		lx.frames.pop()
		w = w.Open(word.OpenValsub, '|')
		w[len(w)-1].Text = text
		return w
	case c == ' ' || c == '\t':
		lx.rd.Ungetc(c)
		lx.frames.push(frame{state: StBrace, parens: 1})
		text := lx.scanBalanced('{', '}', 1)
		lx.frames.pop()
		w = w.Open(word.OpenFunsub, ' ')
		w[len(w)-1].Text = text
		return w
	default:
		lx.rd.Ungetc(c)
		head := lx.scanVarHead()
		w = w.Open(word.OpenSubst, 0)
		w[len(w)-1].Text = head
		return lx.scanSubstBody(w)
	}
}

// scanSubstBody reads the operator and body of a `${name<op>...}`
// substitution, emitting ADelim markers for the operator and routing the
// remaining body through the TBRACE_KORN/TBRACE_SH frame states (spec §4.2
// "Escaping"/"BRACE").
func (lx *Lexer) scanSubstBody(w word.Word) word.Word {
	c := lx.rd.Getc()
	if c == 0 || c == '}' {
		return w.Close(word.CloseSubst)
	}

	st := StBrace
	switch c {
	case ':':
		n := lx.rd.Getc()
		switch n {
		case '-', '+', '?', '=':
			w = w.Delim(':').Delim(n)
		default:
			lx.rd.Ungetc(n)
			w = w.Delim(':')
		}
	case '-', '+', '?', '=':
		w = w.Delim(c)
	case '#':
		n := lx.rd.Getc()
		if n == '#' {
			w = w.Delim('#').Delim('#')
		} else {
			lx.rd.Ungetc(n)
			w = w.Delim('#')
		}
		st = StTBraceSh
	case '%':
		n := lx.rd.Getc()
		if n == '%' {
			w = w.Delim('%').Delim('%')
		} else {
			lx.rd.Ungetc(n)
			w = w.Delim('%')
		}
		st = StTBraceSh
	case '/':
		w = w.Delim('/')
		st = StTBraceKorn
	default:
		lx.rd.Ungetc(c)
		st = StQBrace
	}

	lx.frames.push(frame{state: st, parens: 1})
	depth := 1
scan:
	for depth > 0 {
		ch := lx.rd.Getc()
		if ch == 0 {
			break
		}
		switch ch {
		case '{':
			depth++
			w = w.Append(ch, false)
		case '}':
			depth--
			if depth == 0 {
				break scan
			}
			w = w.Append(ch, false)
		case '\\':
			n := lx.rd.Getc()
			if n != 0 {
				w = w.Append(n, true)
			}
		case '\'':
			w = w.Open(word.OpenQuote, 0)
			for {
				n := lx.rd.Getc()
				if n == 0 || n == '\'' {
					break
				}
				w = w.Append(n, true)
			}
			w = w.Close(word.CloseQuote)
		case '"':
			w = w.Open(word.OpenQuote, 0)
			w = lx.scanDquoteBody(w)
			w = w.Close(word.CloseQuote)
		case '$':
			w = lx.scanDollar(w)
		case '/':
			if st == StTBraceKorn {
				w = w.Delim('/')
			} else {
				w = w.Append(ch, false)
			}
		default:
			w = w.Append(ch, false)
		}
	}
	lx.frames.pop()
	return w.Close(word.CloseSubst)
}

// scanPatternBody reads an extended-glob pattern list's body, e.g. the
// `foo|bar` of `@(foo|bar)` (spec §4.2 "PATTERN"): `|` at the outermost
// nesting level emits SepPat, the matching `)` emits ClosePat.
func (lx *Lexer) scanPatternBody(w word.Word) word.Word {
	lx.frames.push(frame{state: StPattern, parens: 1})
	depth := 1
scan:
	for depth > 0 {
		c := lx.rd.Getc()
		if c == 0 {
			break
		}
		switch c {
		case '(':
			depth++
			w = w.Append(c, false)
		case ')':
			depth--
			if depth == 0 {
				break scan
			}
			w = w.Append(c, false)
		case '|':
			if depth == 1 {
				w = append(w, word.Elem{Kind: word.SepPat, Byte: '|'})
			} else {
				w = w.Append(c, false)
			}
		case '\\':
			n := lx.rd.Getc()
			if n != 0 {
				w = w.Append(n, true)
			}
		case '\'':
			w = w.Open(word.OpenQuote, 0)
			for {
				n := lx.rd.Getc()
				if n == 0 || n == '\'' {
					break
				}
				w = w.Append(n, true)
			}
			w = w.Close(word.CloseQuote)
		case '"':
			w = w.Open(word.OpenQuote, 0)
			w = lx.scanDquoteBody(w)
			w = w.Close(word.CloseQuote)
		case '$':
			w = lx.scanDollar(w)
		default:
			w = w.Append(c, false)
		}
	}
	lx.frames.pop()
	return w.Close(word.ClosePat)
}

// scanBracketLiteral copies an array subscript `[...]` through verbatim
// (balanced on nested brackets), leaving its content for the Expansion
// collaborator to evaluate.
func (lx *Lexer) scanBracketLiteral(w word.Word) word.Word {
	w = w.Append('[', false)
	depth := 1
	for depth > 0 {
		c := lx.rd.Getc()
		if c == 0 {
			break
		}
		switch c {
		case '[':
			depth++
		case ']':
			depth--
		}
		w = w.Append(c, false)
	}
	return w
}

// scanBalanced reads up to the matching close byte, starting at the given
// nesting depth (already-consumed opens counted in), treating nested quotes
// and backslash escapes as opaque so interior parens/braces in quoted text
// don't perturb the count. It returns the captured text, not including the
// final close byte.
func (lx *Lexer) scanBalanced(open, close byte, depth int) string {
	var sb strings.Builder
loop:
	for depth > 0 {
		c := lx.rd.Getc()
		if c == 0 {
			break
		}
		switch c {
		case open:
			depth++
			sb.WriteByte(c)
		case close:
			depth--
			if depth == 0 {
				break loop
			}
			sb.WriteByte(c)
		case '\\':
			sb.WriteByte(c)
			if n := lx.rd.Getc(); n != 0 {
				sb.WriteByte(n)
			}
		case '\'':
			sb.WriteByte(c)
			for {
				n := lx.rd.Getc()
				if n == 0 {
					break
				}
				sb.WriteByte(n)
				if n == '\'' {
					break
				}
			}
		case '"':
			sb.WriteByte(c)
			for {
				n := lx.rd.Getc()
				if n == 0 {
					break
				}
				sb.WriteByte(n)
				if n == '"' {
					break
				}
				if n == '\\' {
					if n2 := lx.rd.Getc(); n2 != 0 {
						sb.WriteByte(n2)
					}
				}
			}
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isPatStart(c byte) bool {
	switch c {
	case '@', '!', '+', '*', '?':
		return true
	}
	return false
}
