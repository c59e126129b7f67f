package mksh

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Distrotech/mksh/word"
)

// stdExpander is the default, minimal-but-real Expander collaborator:
// variable lookup plus the common `${:-...}` default-value family, command
// and arithmetic substitution by recursively invoking the shell's own
// parser/executor, IFS field splitting, tilde expansion, and pathname
// expansion of a field's final path component (spec §1, §6 leave the real word
// expander out of scope; this gives the executor something real to run
// against standalone).
type stdExpander struct{ sh *Shell }

// expPiece is one contiguous run of rendered text plus whether it is immune
// to field splitting/globbing (quoted, or the result of a substitution that
// occurred inside a quoted region).
type expPiece struct {
	text   string
	quoted bool
}

func (e *stdExpander) Expand(ctx context.Context, w word.Word, flags ExpandFlags) ([]string, error) {
	pieces, err := e.render(ctx, w)
	if err != nil {
		return nil, err
	}
	var fields []string
	if flags&OneWord != 0 {
		fields = []string{joinPieces(pieces)}
	} else {
		fields = splitFields(pieces, e.sh.ifs())
	}
	if flags&DoTilde != 0 {
		for i, f := range fields {
			fields[i] = expandTilde(f)
		}
	}
	if flags&DoGlob != 0 {
		var out []string
		for _, f := range fields {
			matches := e.glob(f)
			if len(matches) > 0 {
				out = append(out, matches...)
			} else {
				out = append(out, f)
			}
		}
		fields = out
	}
	return fields, nil
}

func (e *stdExpander) ExpandOne(ctx context.Context, w word.Word, flags ExpandFlags) (string, error) {
	pieces, err := e.render(ctx, w)
	if err != nil {
		return "", err
	}
	s := joinPieces(pieces)
	if flags&DoTilde != 0 {
		s = expandTilde(s)
	}
	return s, nil
}

func joinPieces(pieces []expPiece) string {
	var sb strings.Builder
	for _, p := range pieces {
		sb.WriteString(p.text)
	}
	return sb.String()
}

// render walks w, substituting parameter/command/arithmetic constructs in
// place and tracking quote depth so callers can tell which resulting bytes
// are eligible for field splitting and globbing.
func (e *stdExpander) render(ctx context.Context, w word.Word) ([]expPiece, error) {
	var out []expPiece
	depth := 0
	i := 0
	for i < len(w) {
		el := w[i]
		switch el.Kind {
		case word.Ordinary:
			out = append(out, expPiece{string(el.Byte), depth > 0})
			i++
		case word.Quoted:
			out = append(out, expPiece{string(el.Byte), true})
			i++
		case word.OpenQuote:
			depth++
			i++
		case word.CloseQuote:
			if depth > 0 {
				depth--
			}
			i++
		case word.OpenSubst:
			end := matchMarker(w, i, word.OpenSubst, word.CloseSubst)
			s, err := e.expandParam(ctx, el.Text, w[i+1:end])
			if err != nil {
				return nil, err
			}
			out = append(out, expPiece{s, depth > 0})
			i = end + 1
		case word.OpenComsub, word.OpenFunsub, word.OpenValsub:
			s, err := e.expandComsub(ctx, el)
			if err != nil {
				return nil, err
			}
			out = append(out, expPiece{s, depth > 0})
			i++
		case word.OpenPat:
			end := matchMarker(w, i, word.OpenPat, word.ClosePat)
			out = append(out, expPiece{word.Word(w[i : end+1]).Literal(), depth > 0})
			i = end + 1
		default:
			i++
		}
	}
	return out, nil
}

// matchMarker finds the index of the marker in w (starting at start, whose
// element already is the opening one) that balances to depth 0, honoring
// nesting of the same open/close pair (e.g. ${a:-${b}}).
func matchMarker(w word.Word, start int, open, close word.Kind) int {
	depth := 0
	for i := start; i < len(w); i++ {
		switch w[i].Kind {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(w) - 1
}

// expandParam evaluates one ${...}/$name construct: head is the variable
// head text (spec §4.2.1), body is everything between OpenSubst and
// CloseSubst (the operator markers plus the operator's own word operand).
func (e *stdExpander) expandParam(ctx context.Context, head string, body word.Word) (string, error) {
	name, lengthMode, indirect := splitHead(head)

	lookup := func(n string) (string, bool) {
		return e.sh.lookupScalar(n)
	}

	if indirect {
		target, ok := lookup(name)
		if ok {
			name = target
		}
	}

	val, ok := lookup(name)

	if lengthMode {
		return strconv.Itoa(len(val)), nil
	}

	op, rest := splitOp(body)

	switch op {
	case "":
		return val, nil
	case "-", ":-":
		if !ok || (op == ":-" && val == "") {
			return e.renderJoined(ctx, rest)
		}
		return val, nil
	case "=", ":=":
		if !ok || (op == ":=" && val == "") {
			s, err := e.renderJoined(ctx, rest)
			if err != nil {
				return "", err
			}
			e.sh.Symbols.Set(name, Value{Scalar: s}, 0)
			return s, nil
		}
		return val, nil
	case "?", ":?":
		if !ok || (op == ":?" && val == "") {
			msg, _ := e.renderJoined(ctx, rest)
			if msg == "" {
				msg = "parameter null or not set"
			}
			return "", fmt.Errorf("%s: %s", name, msg)
		}
		return val, nil
	case "+", ":+":
		if ok && !(op == ":+" && val == "") {
			return e.renderJoined(ctx, rest)
		}
		return "", nil
	case "#", "##", "%", "%%":
		pat, err := e.renderJoined(ctx, rest)
		if err != nil {
			return "", err
		}
		glob := e.sh.Glob
		if glob == nil {
			glob = globMatcher{}
		}
		switch op {
		case "#":
			return trimPrefix(val, pat, glob, false), nil
		case "##":
			return trimPrefix(val, pat, glob, true), nil
		case "%":
			return trimSuffix(val, pat, glob, false), nil
		default:
			return trimSuffix(val, pat, glob, true), nil
		}
	case "/", "//":
		patWord, replWord := splitOnByteDelim(rest, '/')
		pat := patWord.Literal()
		repl, err := e.renderJoined(ctx, replWord)
		if err != nil {
			return "", err
		}
		if op == "//" {
			return strings.ReplaceAll(val, pat, repl), nil
		}
		return strings.Replace(val, pat, repl, 1), nil
	case ":":
		return sliceValue(val, rest.Literal()), nil
	default:
		return val, nil
	}
}

func (e *stdExpander) renderJoined(ctx context.Context, w word.Word) (string, error) {
	pieces, err := e.render(ctx, w)
	if err != nil {
		return "", err
	}
	return joinPieces(pieces), nil
}

// splitHead separates the optional '#'/'!' marker from a variable head (spec
// §4.2.1): '#' alone names the special "$#" variable; '#' followed by more
// text means length-of; '!' means indirect (nameref-style) lookup.
func splitHead(head string) (name string, lengthMode, indirect bool) {
	if head == "" {
		return "", false, false
	}
	switch head[0] {
	case '#':
		if len(head) == 1 {
			return "#", false, false
		}
		return head[1:], true, false
	case '!':
		return head[1:], false, true
	default:
		return head, false, false
	}
}

// splitOp collects the leading ADelim run of a substitution body into an
// operator string, returning the remainder as the operator's word operand.
func splitOp(body word.Word) (op string, rest word.Word) {
	i := 0
	for i < len(body) && body[i].Kind == word.ADelim {
		op += string(body[i].Byte)
		i++
	}
	return op, body[i:]
}

// splitOnByteDelim finds the first top-level ADelim marker carrying b and
// splits body there (used for ${v/pat/repl}'s pattern/replacement divide).
func splitOnByteDelim(body word.Word, b byte) (before, after word.Word) {
	depth := 0
	for i, el := range body {
		switch el.Kind {
		case word.OpenSubst, word.OpenPat, word.OpenQuote:
			depth++
		case word.CloseSubst, word.ClosePat, word.CloseQuote:
			depth--
		case word.ADelim:
			if depth == 0 && el.Byte == b {
				return body[:i], body[i+1:]
			}
		}
	}
	return body, nil
}

// trimPrefix/trimSuffix implement the #/##/%/%% operators by testing
// successively longer/shorter prefixes or suffixes of s against pattern
// through the installed GlobMatcher, real glob semantics rather than a
// literal-only approximation.
func trimPrefix(s, pattern string, glob GlobMatcher, longest bool) string {
	if longest {
		for n := len(s); n >= 0; n-- {
			if glob.Match(s[:n], pattern) {
				return s[n:]
			}
		}
	} else {
		for n := 0; n <= len(s); n++ {
			if glob.Match(s[:n], pattern) {
				return s[n:]
			}
		}
	}
	return s
}

func trimSuffix(s, pattern string, glob GlobMatcher, longest bool) string {
	if longest {
		for n := 0; n <= len(s); n++ {
			if glob.Match(s[n:], pattern) {
				return s[:n]
			}
		}
	} else {
		for n := len(s); n >= 0; n-- {
			if glob.Match(s[n:], pattern) {
				return s[:n]
			}
		}
	}
	return s
}

// sliceValue implements ${v:offset} / ${v:offset:length}.
func sliceValue(s, spec string) string {
	parts := strings.SplitN(spec, ":", 2)
	off, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return s
	}
	if off < 0 {
		off += len(s)
	}
	if off < 0 {
		off = 0
	}
	if off > len(s) {
		return ""
	}
	if len(parts) == 1 {
		return s[off:]
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return s[off:]
	}
	end := off + n
	if n < 0 {
		end = len(s) + n
	}
	if end > len(s) {
		end = len(s)
	}
	if end < off {
		return ""
	}
	return s[off:end]
}

// expandComsub runs a $(...)/`...`/${ cmd;}/${|cmd;} command substitution or
// evaluates a $((...)) arithmetic substitution, recognized by el.Byte ('a'
// for arithmetic, else the three comsub/funsub/valsub flavors all capture
// stdout the same way).
func (e *stdExpander) expandComsub(ctx context.Context, el word.Elem) (string, error) {
	if el.Kind == word.OpenComsub && el.Byte == 'a' {
		v, err := e.sh.arithEval(el.Text)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(v, 10), nil
	}
	out, err := e.sh.runCapture(ctx, "<command substitution>", el.Text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// runCapture parses and executes body, capturing its stdout through a real
// pipe wired via the Redirection Engine (spec §4.5) rather than an in-memory
// buffer, so the captured subprocess/subshell observes a genuine fd 1.
func (sh *Shell) runCapture(ctx context.Context, name, body string) (string, error) {
	tree, err := sh.SubParse(name, body)
	if err != nil {
		return "", err
	}
	r, w, err := sh.Host.Pipe()
	if err != nil {
		return "", err
	}
	reader, err := sh.Host.Reader(r)
	if err != nil {
		sh.Host.Close(r)
		sh.Host.Close(w)
		return "", err
	}

	sh.pushEnv(FrameSubshell)
	if err := sh.installFD(1, w); err != nil {
		sh.popEnv()
		sh.Host.Close(r)
		return "", err
	}

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(reader)
		close(done)
	}()

	sh.inEval++
	_, execErr := sh.Exec(ctx, tree)
	sh.inEval--
	sh.popEnv() // closes the dup installed at fd 1, signaling EOF to the reader
	<-done
	sh.Host.Close(r)

	if execErr != nil {
		if _, isSig := asSignal(execErr); !isSig {
			return buf.String(), execErr
		}
	}
	return buf.String(), nil
}

// ifs returns the active field separator, defaulting to space/tab/newline.
func (sh *Shell) ifs() string {
	if v, ok := sh.lookupScalar("IFS"); ok {
		return v
	}
	return " \t\n"
}

// lookupScalar resolves the special shell variables (spec §6/GLOSSARY: $?,
// $$, $0, $#, $@, $*, positional parameters) before falling through to
// the SymbolTable; $! has no case here and is looked up there like any
// other name.
func (sh *Shell) lookupScalar(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(sh.Status), true
	case "$":
		return strconv.Itoa(os.Getpid()), true
	case "0":
		return sh.kshname, true
	case "#":
		return strconv.Itoa(len(sh.Positional)), true
	case "@", "*":
		return strings.Join(sh.Positional, " "), true
	}
	if len(name) > 0 && isDigit(name[0]) {
		n, err := strconv.Atoi(name)
		if err == nil && n >= 1 && n <= len(sh.Positional) {
			return sh.Positional[n-1], true
		}
		return "", false
	}
	if sh.Symbols == nil {
		return "", false
	}
	v, ok := sh.Symbols.Lookup(name)
	if !ok {
		return "", false
	}
	if v.Flags&Array != 0 {
		return strings.Join(v.Elems, " "), true
	}
	return v.Scalar, true
}

// splitFields performs IFS field splitting over a rendered piece sequence,
// skipping split characters that fall inside quoted pieces.
func splitFields(pieces []expPiece, ifs string) []string {
	if ifs == "" {
		return []string{joinPieces(pieces)}
	}
	isSep := func(b byte) bool { return strings.IndexByte(ifs, b) >= 0 }

	var fields []string
	var cur strings.Builder
	any := false
	flush := func() {
		fields = append(fields, cur.String())
		cur.Reset()
		any = false
	}
	started := false
	for _, p := range pieces {
		if p.quoted {
			cur.WriteString(p.text)
			any = true
			started = true
			continue
		}
		for i := 0; i < len(p.text); i++ {
			b := p.text[i]
			if isSep(b) {
				if any {
					flush()
				}
				started = true
				continue
			}
			cur.WriteByte(b)
			any = true
			started = true
		}
	}
	if any || (started && len(fields) == 0) {
		fields = append(fields, cur.String())
	}
	if len(fields) == 0 && started {
		fields = []string{""}
	}
	return fields
}

// expandTilde implements `~`/`~user` prefix expansion (spec §6 "DOTILDE").
func expandTilde(s string) string {
	if s == "" || s[0] != '~' {
		return s
	}
	rest := s[1:]
	cut := strings.IndexByte(rest, '/')
	name, suffix := rest, ""
	if cut >= 0 {
		name, suffix = rest[:cut], rest[cut:]
	}
	var home string
	if name == "" {
		home = os.Getenv("HOME")
		if home == "" {
			if u, err := user.Current(); err == nil {
				home = u.HomeDir
			}
		}
	} else if u, err := user.Lookup(name); err == nil {
		home = u.HomeDir
	} else {
		return s
	}
	if home == "" {
		return s
	}
	return home + suffix
}

// glob expands a single field as a pathname pattern (spec §6 "DOGLOB"): it
// lists the field's directory part with os.ReadDir and matches each entry
// name against the final path component with the installed GlobMatcher
// (not filepath.Match directly), so a non-default GlobMatcher is honored
// here too. Pattern characters in the directory part are not expanded.
func (e *stdExpander) glob(pattern string) []string {
	if !strings.ContainsAny(pattern, "*?[") {
		return nil
	}
	dir, base := filepath.Split(pattern)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	glob := e.sh.Glob
	if glob == nil {
		glob = globMatcher{}
	}
	var out []string
	for _, ent := range entries {
		if glob.Match(ent.Name(), base) {
			if pattern[:len(pattern)-len(strings.TrimPrefix(pattern, dir))] == "" {
				out = append(out, filepath.Join(dir, ent.Name()))
			} else {
				out = append(out, dir+ent.Name())
			}
		}
	}
	return out
}
