package mksh

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Distrotech/mksh/token"
	"github.com/Distrotech/mksh/word"
)

// HeredocExpander is the minimal slice of the Expansion collaborator the
// Here-Document Collector needs: rendering a delimiter word down to the
// plain string it names (spec §4.3: "expand the delimiter word ... with no
// splitting"). A nil HeredocExpander falls back to word.Word.Literal,
// which is correct whenever the delimiter carries no parameter expansion.
type HeredocExpander interface {
	ExpandOne(w word.Word) (string, error)
}

// SetExpander installs the collaborator used to render heredoc delimiter and
// here-string words down to plain text.
func (lx *Lexer) SetExpander(e HeredocExpander) { lx.expander = e }

func (lx *Lexer) expandWord(w word.Word) (string, error) {
	if lx.expander != nil {
		return lx.expander.ExpandOne(w)
	}
	return w.Literal(), nil
}

// CollectHeredocs reads the bodies of every here-document whose delimiter
// has been lexed since the previous newline (spec §4.3). It must be called
// once a full NEWLINE token has been produced, before the command(s) on
// that line are executed.
func (lx *Lexer) CollectHeredocs() error {
	for _, io := range lx.PendingHeredocs() {
		if err := lx.collectOne(io); err != nil {
			return err
		}
	}
	return nil
}

func (lx *Lexer) collectOne(io *token.IOWord) error {
	term, err := lx.expandWord(io.Delim)
	if err != nil {
		return err
	}

	if io.Flag&token.HereStr != 0 {
		io.Heredoc = []byte(term + "\n")
		return nil
	}

	quoted := io.Delim.HasAnyQuoting()
	if !quoted {
		io.Flag |= token.Eval
	}
	strip := io.Flag&token.Skip != 0

	// Body collection never folds backslash-newline, whether the delimiter
	// was quoted or not — spec §4.3. An unquoted delimiter sets Eval on the
	// IOWord, but nothing reads that flag: ioSetupHeredoc writes the body
	// out as collected, with no parameter, command or arithmetic expansion.
	saved := lx.rd.ignoreBackslashNewline
	lx.rd.SetIgnoreBackslashNewline(true)
	defer lx.rd.SetIgnoreBackslashNewline(saved)

	var buf bytes.Buffer
	for {
		line, atEOF := lx.readHeredocLine()
		effLine := line
		if strip {
			effLine = strings.TrimLeft(line, "\t")
		}
		if effLine == term {
			io.Heredoc = buf.Bytes()
			return nil
		}
		buf.WriteString(effLine)
		buf.WriteByte('\n')
		if atEOF {
			return LexError{Message: fmt.Sprintf("here document %q unclosed", term)}
		}
	}
}

// readHeredocLine reads one line (without its terminating newline) from the
// lexer's reader, reporting whether it hit end of input before a newline.
func (lx *Lexer) readHeredocLine() (line string, atEOF bool) {
	var sb strings.Builder
	for {
		c := lx.rd.Getc()
		if c == 0 {
			return sb.String(), true
		}
		if c == '\n' {
			return sb.String(), false
		}
		sb.WriteByte(c)
	}
}
