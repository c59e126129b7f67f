package mksh

import (
	"fmt"
	"strings"

	"github.com/Distrotech/mksh/token"
	"github.com/Distrotech/mksh/word"
)

// parser turns the Lexer's token stream into a Command Tree (spec §2: "the
// executor invokes the parser for command substitutions and function
// bodies"; §9 Design Notes: "expose the lexer as a stateful object owned by
// the parser"). It keeps a small lookahead buffer since a handful of
// productions (POSIX function definitions, case-pattern lists) need more
// than one token of lookahead, the same way a hand-written recursive-descent
// reading of a yacc shell grammar would.
type parser struct {
	sh  *Shell
	buf []token.Token
}

// parseError reports a syntax error; the parser itself sits outside spec.md's
// scope (§1 "parser itself is not in this spec"), so this is a plain error
// rather than a member of the §7 taxonomy.
type parseError struct {
	Message string
	Line    int
}

func (e *parseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func (p *parser) errorf(tok token.Token, format string, args ...interface{}) error {
	return &parseError{Message: fmt.Sprintf(format, args...), Line: tok.Line}
}

// fill ensures the lookahead buffer holds at least n+1 tokens, lexing new
// ones with flags whenever it must grow.
func (p *parser) fill(n int, flags Flags) error {
	for len(p.buf) <= n {
		tok, err := p.sh.Lexer.Next(flags)
		if err != nil {
			return err
		}
		p.buf = append(p.buf, tok)
		if tok.Kind == token.NEWLINE {
			if err := p.sh.Lexer.CollectHeredocs(); err != nil {
				return err
			}
		}
	}
	return nil
}

// peek returns (without consuming) the next token, lexing it with flags if
// it is not already buffered.
func (p *parser) peek(flags Flags) (token.Token, error) {
	if err := p.fill(0, flags); err != nil {
		return token.Token{}, err
	}
	return p.buf[0], nil
}

// peekAt returns the token at offset n (0 = next), lexing any intervening
// tokens with plain flags (no keyword/alias resolution — only ever used
// for the two-token function-definition lookahead, where the intervening
// token is always an operator).
func (p *parser) peekAt(n int, flags Flags) (token.Token, error) {
	if err := p.fill(n, flags); err != nil {
		return token.Token{}, err
	}
	return p.buf[n], nil
}

func (p *parser) consume() token.Token {
	tok := p.buf[0]
	p.buf = p.buf[1:]
	return tok
}

func (p *parser) expectKeyword(k token.Kind) (token.Token, error) {
	tok, err := p.peek(FKeyword)
	if err != nil {
		return tok, err
	}
	if tok.Kind != k {
		return tok, p.errorf(tok, "expected %v, got %v", k, tok.Kind)
	}
	return p.consume(), nil
}

func (p *parser) skipNewlines(flags Flags) error {
	for {
		tok, err := p.peek(flags)
		if err != nil {
			return err
		}
		if tok.Kind != token.NEWLINE {
			return nil
		}
		p.consume()
	}
}

// parseProgram parses a whole input (a top-level script, a command
// substitution body, an eval/function body) down to EOF.
func (p *parser) parseProgram() (*Node, error) {
	if err := p.skipNewlines(FKeyword); err != nil {
		return nil, err
	}
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.EOF {
		return nil, nil
	}
	node, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if err := p.skipNewlines(FKeyword); err != nil {
		return nil, err
	}
	tok, err = p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.EOF {
		return nil, p.errorf(tok, "unexpected %v", tok.Kind)
	}
	return node, nil
}

// isListEnd reports whether kind terminates a list without being consumed
// by it (a closing keyword, EOF, a case-clause terminator, or a subshell's
// closing paren).
func isListEnd(k token.Kind) bool {
	switch k {
	case token.EOF, token.KwFi, token.KwThen, token.KwElse, token.KwElif,
		token.KwDone, token.KwEsac, token.RPAREN, token.KwRbrace,
		token.BREAK, token.BRKEV, token.BRKFT:
		return true
	}
	return false
}

// parseList parses list := and_or (separator and_or)* [separator] (spec §3
// "TLIST"/"TASYNC").
func (p *parser) parseList() (*Node, error) {
	left, err := p.parseAndOr()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek(FKeyword)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.AND:
			p.consume()
			left = &Node{Tag: TAsync, Left: left, Line: tok.Line}
		case token.SEMI:
			p.consume()
		case token.NEWLINE:
			p.consume()
		default:
			return left, nil
		}
		if err := p.skipNewlines(FKeyword); err != nil {
			return nil, err
		}
		tok, err = p.peek(FKeyword)
		if err != nil {
			return nil, err
		}
		if isListEnd(tok.Kind) {
			return left, nil
		}
		right, err := p.parseAndOr()
		if err != nil {
			return nil, err
		}
		left = &Node{Tag: TList, Left: left, Right: right, Line: tok.Line}
	}
}

// parseAndOr parses and_or := pipeline ((LOGAND|LOGOR) NEWLINE* pipeline)*.
func (p *parser) parseAndOr() (*Node, error) {
	left, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind != token.LOGAND && tok.Kind != token.LOGOR {
			return left, nil
		}
		p.consume()
		if err := p.skipNewlines(FKeyword); err != nil {
			return nil, err
		}
		right, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		tag := TAnd
		if tok.Kind == token.LOGOR {
			tag = TOr
		}
		left = &Node{Tag: tag, Left: left, Right: right, Line: tok.Line}
	}
}

func isCommandStart(k token.Kind) bool {
	switch k {
	case token.WORD, token.LPAREN, token.MDPAREN, token.KwLbrace, token.KwIf,
		token.KwFor, token.KwSelect, token.KwWhile, token.KwUntil, token.KwCase,
		token.KwFunction, token.KwTime, token.KwBang, token.REDIR:
		return true
	}
	return false
}

// parsePipeline parses pipeline := ['!'] command (('|'|'|&') NEWLINE*
// command)* (spec §3 "TPIPE"/"TBANG"/"TCOPROC").
func (p *parser) parsePipeline() (*Node, error) {
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	bang := false
	if tok.Kind == token.KwBang {
		p.consume()
		bang = true
	}
	left, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.PIPE:
			p.consume()
			if err := p.skipNewlines(FKeyword); err != nil {
				return nil, err
			}
			right, err := p.parseCommand()
			if err != nil {
				return nil, err
			}
			left = &Node{Tag: TPipe, Left: left, Right: right, Line: tok.Line}
		case token.COPROC:
			p.consume()
			nt, err := p.peek(FKeyword)
			if err != nil {
				return nil, err
			}
			if isCommandStart(nt.Kind) {
				if err := p.skipNewlines(FKeyword); err != nil {
					return nil, err
				}
				right, err := p.parseCommand()
				if err != nil {
					return nil, err
				}
				left = &Node{Tag: TPipe, Left: left, Right: right, Line: tok.Line, CharFlag: '&'}
			} else {
				left = &Node{Tag: TCoproc, Left: left, Line: tok.Line}
			}
		default:
			if bang {
				left = &Node{Tag: TBang, Left: left}
			}
			return left, nil
		}
	}
}

// parseCommand dispatches on the lookahead keyword to one of the compound
// command productions, or falls through to a simple command / function
// definition (spec §3 "Command tree node" tags).
func (p *parser) parseCommand() (*Node, error) {
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.KwLbrace:
		return p.parseBraceGroup()
	case token.LPAREN:
		return p.parseSubshell()
	case token.MDPAREN:
		return p.parseArithCommand()
	case token.KwIf:
		p.consume()
		return p.parseIfClause(TIf)
	case token.KwFor:
		return p.parseFor(TFor)
	case token.KwSelect:
		return p.parseFor(TSelect)
	case token.KwWhile:
		return p.parseLoop(TWhile)
	case token.KwUntil:
		return p.parseLoop(TUntil)
	case token.KwCase:
		return p.parseCase()
	case token.KwFunction:
		return p.parseKshFunction()
	case token.KwTime:
		p.consume()
		body, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		return &Node{Tag: TTime, Left: body, Line: tok.Line}, nil
	default:
		return p.parseSimpleOrFuncDef()
	}
}

func (p *parser) parseBraceGroup() (*Node, error) {
	p.consume() // {
	body, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwRbrace); err != nil {
		return nil, err
	}
	return p.parseRedirections(&Node{Tag: TBrace, Left: body})
}

func (p *parser) parseSubshell() (*Node, error) {
	open, _ := p.peek(0)
	p.consume() // (
	body, err := p.parseList()
	if err != nil {
		return nil, err
	}
	tok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.RPAREN {
		return nil, p.errorf(tok, "expected ), got %v", tok.Kind)
	}
	p.consume()
	return p.parseRedirections(&Node{Tag: TParen, Left: body, Line: open.Line})
}

// parseArithCommand turns the `((expr))` arithmetic command into the `let`
// invocation it is historical sugar for (spec §9 Design Notes: "the source's
// ... LETPAREN ... historically ((expr)) is sugar for let expr").
func (p *parser) parseArithCommand() (*Node, error) {
	tok := p.consume()
	node := &Node{Tag: TCom, Args: []word.Word{litWord("let"), tok.Word}, Line: tok.Line}
	return p.parseRedirections(node)
}

// litWord builds a plain, unquoted Word out of a Go string, for tokens the
// parser synthesizes rather than lexes (e.g. the implicit "let" of an
// arithmetic command).
func litWord(s string) word.Word {
	var w word.Word
	for i := 0; i < len(s); i++ {
		w = w.Append(s[i], false)
	}
	return w.Terminate()
}

// parseIfClause parses one level of `if/elif cond then then-body
// [elif...|else...] fi` (spec §3 "TIF"/"TELIF"); the "if"/"elif" keyword
// itself has already been consumed by the caller.
func (p *parser) parseIfClause(tag Tag) (*Node, error) {
	cond, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwThen); err != nil {
		return nil, err
	}
	then, err := p.parseList()
	if err != nil {
		return nil, err
	}
	node := &Node{Tag: tag, Left: cond, Right: then}
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	switch tok.Kind {
	case token.KwElif:
		p.consume()
		elif, err := p.parseIfClause(TElif)
		if err != nil {
			return nil, err
		}
		node.Else = elif
	case token.KwElse:
		p.consume()
		body, err := p.parseList()
		if err != nil {
			return nil, err
		}
		node.Else = body
		if _, err := p.expectKeyword(token.KwFi); err != nil {
			return nil, err
		}
	case token.KwFi:
		p.consume()
	default:
		return nil, p.errorf(tok, "expected fi/else/elif, got %v", tok.Kind)
	}
	return node, nil
}

// parseFor parses both `for`/`select` (identical grammar, spec §4.4 "TFOR"/
// "TSELECT": "expand list (or use positional args)").
func (p *parser) parseFor(tag Tag) (*Node, error) {
	kw := p.consume() // for/select
	nameTok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	if nameTok.Kind != token.WORD {
		return nil, p.errorf(nameTok, "expected name, got %v", nameTok.Kind)
	}
	p.consume()

	var words []word.Word
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.KwIn {
		p.consume()
		for {
			wtok, err := p.peek(0)
			if err != nil {
				return nil, err
			}
			if wtok.Kind != token.WORD {
				break
			}
			p.consume()
			words = append(words, wtok.Word)
		}
		tok, err = p.peek(FKeyword)
		if err != nil {
			return nil, err
		}
	}
	switch tok.Kind {
	case token.SEMI, token.NEWLINE:
		p.consume()
	}
	if err := p.skipNewlines(FKeyword); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwDo); err != nil {
		return nil, err
	}
	body, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwDone); err != nil {
		return nil, err
	}
	node := &Node{Tag: tag, Str: nameTok.KwText, Args: words, Left: body, Line: kw.Line}
	return p.parseRedirections(node)
}

func (p *parser) parseLoop(tag Tag) (*Node, error) {
	kw := p.consume() // while/until
	cond, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwDo); err != nil {
		return nil, err
	}
	body, err := p.parseList()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwDone); err != nil {
		return nil, err
	}
	node := &Node{Tag: tag, Left: cond, Right: body, Line: kw.Line}
	return p.parseRedirections(node)
}

// parseCase parses `case word in (pat|pat)... body ;;|;&|;| ... esac` (spec
// §3 "TCASE"/"TPAT"): the scrutinee is carried in Args[0]; TPat clauses
// chain through Right, each holding its pattern list in Args and its body
// in Left.
func (p *parser) parseCase() (*Node, error) {
	kw := p.consume() // case
	scrut, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if scrut.Kind != token.WORD {
		return nil, p.errorf(scrut, "expected word after case, got %v", scrut.Kind)
	}
	p.consume()
	if err := p.skipNewlines(FKeyword); err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword(token.KwIn); err != nil {
		return nil, err
	}
	if err := p.skipNewlines(FKeyword | FEsacOnly); err != nil {
		return nil, err
	}

	var first, last *Node
	for {
		tok, err := p.peek(FEsacOnly)
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.KwEsac {
			p.consume()
			break
		}
		if tok.Kind == token.LPAREN {
			p.consume()
		}
		var pats []word.Word
		for {
			pt, err := p.peek(FEsacOnly)
			if err != nil {
				return nil, err
			}
			if pt.Kind != token.WORD {
				return nil, p.errorf(pt, "expected pattern, got %v", pt.Kind)
			}
			p.consume()
			pats = append(pats, pt.Word)
			nt, err := p.peek(0)
			if err != nil {
				return nil, err
			}
			if nt.Kind == token.PIPE {
				p.consume()
				continue
			}
			break
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		if err := p.skipNewlines(FKeyword | FEsacOnly); err != nil {
			return nil, err
		}
		body, err := p.parseCaseBody()
		if err != nil {
			return nil, err
		}
		var flag byte
		et, err := p.peek(FEsacOnly)
		if err != nil {
			return nil, err
		}
		switch et.Kind {
		case token.BREAK:
			p.consume()
			flag = 0
		case token.BRKFT:
			p.consume()
			flag = '&'
		case token.BRKEV:
			p.consume()
			flag = '|'
		}
		if err := p.skipNewlines(FKeyword | FEsacOnly); err != nil {
			return nil, err
		}
		clause := &Node{Tag: TPat, Args: pats, Left: body, CharFlag: flag}
		if first == nil {
			first = clause
		} else {
			last.Right = clause
		}
		last = clause
	}
	node := &Node{Tag: TCase, Args: []word.Word{scrut.Word}, Left: first, Line: kw.Line}
	return p.parseRedirections(node)
}

// parseCaseBody parses a pattern clause's body: a list that stops at the
// clause terminator (;;, ;&, ;|) or directly at esac (an omitted trailing
// ;; before esac is permitted).
func (p *parser) parseCaseBody() (*Node, error) {
	tok, err := p.peek(FKeyword | FEsacOnly)
	if err != nil {
		return nil, err
	}
	if isListEnd(tok.Kind) {
		return nil, nil
	}
	return p.parseList()
}

// parseKshFunction parses `function name [()] { ... }` (spec §4.4 "Ksh-style
// functions set $0 = name and own getopts state").
func (p *parser) parseKshFunction() (*Node, error) {
	kw := p.consume() // function
	nameTok, err := p.peek(0)
	if err != nil {
		return nil, err
	}
	if nameTok.Kind != token.WORD {
		return nil, p.errorf(nameTok, "expected function name, got %v", nameTok.Kind)
	}
	p.consume()
	// FKeyword, so a `{` buffered by this lookahead is already KwLbrace
	// when parseCommand sees it.
	tok, err := p.peek(FKeyword)
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.LPAREN {
		p.consume()
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}
	if err := p.skipNewlines(FKeyword); err != nil {
		return nil, err
	}
	body, err := p.parseCommand()
	if err != nil {
		return nil, err
	}
	return &Node{Tag: TFunct, Str: nameTok.KwText, Left: body, KshFunc: true, Line: kw.Line}, nil
}

func (p *parser) expect(k token.Kind) (token.Token, error) {
	tok, err := p.peek(0)
	if err != nil {
		return tok, err
	}
	if tok.Kind != k {
		return tok, p.errorf(tok, "expected %v, got %v", k, tok.Kind)
	}
	return p.consume(), nil
}

// parseSimpleOrFuncDef disambiguates a POSIX function definition ("name()
// compound-command") from an ordinary simple command via the two-token
// lookahead `WORD LPAREN` (spec §4.2 "a following POSIX function definition
// wins").
func (p *parser) parseSimpleOrFuncDef() (*Node, error) {
	tok, err := p.peek(FAlias)
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.WORD && tok.KwText == "[[" {
		return p.parseDBracket()
	}
	if tok.Kind == token.WORD {
		nt, err := p.peekAt(1, 0)
		if err != nil {
			return nil, err
		}
		if nt.Kind == token.LPAREN {
			nt2, err := p.peekAt(2, 0)
			if err != nil {
				return nil, err
			}
			if nt2.Kind == token.RPAREN {
				p.consume()
				p.consume()
				p.consume()
				if err := p.skipNewlines(FKeyword); err != nil {
					return nil, err
				}
				body, err := p.parseCommand()
				if err != nil {
					return nil, err
				}
				return &Node{Tag: TFunct, Str: tok.KwText, Left: body, Line: tok.Line}, nil
			}
		}
	}
	return p.parseSimpleCommand()
}

// parseDBracket carries a `[[ ... ]]` conditional expression through as a
// list of operand Words in Args (so the evaluator can still expand `$vars`
// at run time, spec §4.4 "TDBRACKET: dispatch to the [[ ... ]] evaluator
// via a small visitor interface"); this core's own lexer does not
// special-case `[[`, so the body is collected as ordinary words up to a
// literal `]]`, and Str keeps the unexpanded literal rendering for
// diagnostics/dump.go.
func (p *parser) parseDBracket() (*Node, error) {
	open := p.consume() // "[["
	var operands []word.Word
	var parts []string
	for {
		t, err := p.peek(FVarAsn)
		if err != nil {
			return nil, err
		}
		if t.Kind == token.WORD && t.KwText == "]]" {
			p.consume()
			break
		}
		if t.Kind == token.EOF || t.Kind == token.NEWLINE {
			return nil, p.errorf(t, "expected ]], got %v", t.Kind)
		}
		p.consume()
		operands = append(operands, t.Word)
		parts = append(parts, t.Word.Literal())
	}
	node := &Node{Tag: TDBracket, Str: strings.Join(parts, " "), Args: operands, Line: open.Line}
	return p.parseRedirections(node)
}

// parseRedirections collects any redirections trailing a compound command
// (spec §3 "ioact").
func (p *parser) parseRedirections(node *Node) (*Node, error) {
	for {
		tok, err := p.peek(0)
		if err != nil {
			return nil, err
		}
		if tok.Kind != token.REDIR {
			return node, nil
		}
		p.consume()
		node.IOAct = append(node.IOAct, tok.Redir)
	}
}

// parseSimpleCommand parses a simple command: leading NAME=value assignment
// words, then argument words and redirections in any order (spec §3 "vars"/
// "args"/"ioact"; §4.4 "Assignment handling").
func (p *parser) parseSimpleCommand() (*Node, error) {
	var vars, args []word.Word
	var ioact []*token.IOWord
	sawArg := false
	first := true
	var line int

	for {
		flags := Flags(0)
		if first {
			flags = FAlias | FVarAsn
		}
		tok, err := p.peek(flags)
		if err != nil {
			return nil, err
		}
		switch tok.Kind {
		case token.WORD:
			p.consume()
			if line == 0 {
				line = tok.Line
			}
			if !sawArg {
				if _, _, ok := splitAssignment(tok.Word); ok {
					vars = append(vars, tok.Word)
					first = false
					continue
				}
			}
			args = append(args, tok.Word)
			sawArg = true
			first = false
		case token.REDIR:
			p.consume()
			if line == 0 {
				line = tok.Line
			}
			ioact = append(ioact, tok.Redir)
			first = false
		default:
			if len(vars) == 0 && len(args) == 0 && len(ioact) == 0 {
				return nil, p.errorf(tok, "expected command, got %v", tok.Kind)
			}
			return &Node{Tag: TCom, Vars: vars, Args: args, IOAct: ioact, Line: line}, nil
		}
	}
}

// splitAssignment reports whether w has the shape NAME=... with NAME an
// unquoted, unquote-marker-free shell identifier (spec §4.2 "VARASN"/§4.4
// "assignments bind in a new block"). value keeps w's original elements
// (quoting/substitution markers included) so the caller can still expand it
// properly rather than working from a pre-flattened literal.
func splitAssignment(w word.Word) (name string, value word.Word, ok bool) {
	i := 0
	for i < len(w) {
		e := w[i]
		if e.Kind == word.EOS {
			break
		}
		if e.Kind != word.Ordinary {
			return "", nil, false
		}
		if e.Byte == '=' {
			break
		}
		if !isIdentCont(e.Byte) && e.Byte != '[' {
			return "", nil, false
		}
		i++
	}
	if i == 0 || i >= len(w) || w[i].Kind != word.Ordinary || w[i].Byte != '=' {
		return "", nil, false
	}
	name = word.Word(w[:i]).Literal()
	if !isIdentStart(name[0]) {
		return "", nil, false
	}
	return name, w[i+1:], true
}
