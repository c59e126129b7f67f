package mksh

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/Distrotech/mksh/internal/fdtable"
	"github.com/Distrotech/mksh/token"
)

// IOSetup implements the Redirection Engine's iosetup (spec §4.5): expands
// the target, computes open flags, opens/dups the file, saves the unit's
// prior state exactly once per environment frame, and dup2s the new fd
// into place.
func (sh *Shell) IOSetup(ctx context.Context, io *token.IOWord) error {
	switch {
	case io.Flag&(token.Here|token.HereStr) != 0:
		return sh.ioSetupHeredoc(io)
	case io.Flag&token.Dup != 0:
		return sh.ioSetupDup(io)
	default:
		return sh.ioSetupFile(ctx, io)
	}
}

func (sh *Shell) ioSetupFile(ctx context.Context, io *token.IOWord) error {
	name, err := sh.expandOne(ctx, io.Name)
	if err != nil {
		return RedirError{Unit: io.Unit, Err: err}
	}

	flag := openFlags(io.Flag)
	if sh.NoClobber && io.Flag&(token.Write) != 0 && io.Flag&token.Clob == 0 {
		if fi, statErr := sh.Host.Stat(name); statErr != nil || fi.Mode().IsRegular() {
			flag |= os.O_EXCL
		}
	}

	fd, err := sh.Host.Open(name, flag, 0666)
	if err != nil {
		return RedirError{Unit: io.Unit, Name: name, Err: err}
	}
	if err := sh.installFD(io.Unit, fd); err != nil {
		return RedirError{Unit: io.Unit, Name: name, Err: err}
	}

	if io.Flag&token.Bash != 0 {
		// &>/&>> duplicates the same target onto fd 2 as well as the
		// primary unit (spec §3 IOWord "BASH (the &> form)").
		if err := sh.saveFD(2); err != nil {
			return RedirError{Unit: 2, Name: name, Err: err}
		}
		if err := sh.Host.Dup2(io.Unit, 2); err != nil {
			return RedirError{Unit: 2, Name: name, Err: err}
		}
	}
	return nil
}

func openFlags(fl token.IOFlag) int {
	switch {
	case fl&token.RdWr != 0:
		return os.O_RDWR | os.O_CREATE
	case fl&token.Cat != 0:
		return os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case fl&(token.Write|token.Clob|token.Bash) != 0:
		return os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return os.O_RDONLY
	}
}

// ioSetupDup implements `<&n`/`>&n`/`<&-`/`>&-` (spec §4.5 "For DUP: '-' is
// close; else parse the operand as an fd with the required access mode").
func (sh *Shell) ioSetupDup(io *token.IOWord) error {
	lit := io.Name.Literal()
	if lit == "-" {
		if err := sh.saveFD(io.Unit); err != nil {
			return RedirError{Unit: io.Unit, Err: err}
		}
		sh.Host.Close(io.Unit)
		return nil
	}
	src, err := strconv.Atoi(lit)
	if err != nil {
		return RedirError{Unit: io.Unit, Name: lit, Err: fmt.Errorf("bad fd number")}
	}
	// src names a fd the caller still owns (e.g. fd 1 in `2>&1`), not a
	// temporary handle this function opened itself — dup2 it into place but
	// leave it open, unlike installFD's close-after-dup2 (spec §4.5 "dup2(source,
	// unit)"; closing it here would sever the caller's own stdout/stdin).
	if err := sh.saveFD(io.Unit); err != nil {
		return RedirError{Unit: io.Unit, Name: lit, Err: err}
	}
	if err := sh.Host.Dup2(src, io.Unit); err != nil {
		return RedirError{Unit: io.Unit, Name: lit, Err: err}
	}
	return nil
}

// ioSetupHeredoc implements the HERE/HERESTR branch of spec §4.5: the
// collected body (§4.3) is materialized to a uniquely-named temp file
// registered for cleanup on env-frame pop, opened read-only.
func (sh *Shell) ioSetupHeredoc(io *token.IOWord) error {
	f, err := ioutil.TempFile("", "mksh-heredoc-*")
	if err != nil {
		return RedirError{Unit: io.Unit, Err: err}
	}
	path := f.Name()
	_, werr := f.Write(io.Heredoc)
	cerr := f.Close()
	if werr != nil {
		os.Remove(path)
		return RedirError{Unit: io.Unit, Err: werr}
	}
	if cerr != nil {
		os.Remove(path)
		return RedirError{Unit: io.Unit, Err: cerr}
	}
	sh.registerTemp(path)

	fd, err := sh.Host.Open(path, os.O_RDONLY, 0)
	if err != nil {
		return RedirError{Unit: io.Unit, Name: path, Err: err}
	}
	return sh.installFD(io.Unit, fd)
}

// saveFD records the current state of unit in the top environment frame,
// exactly once (spec §3 "Save the prior state of iow.unit exactly once per
// env frame"). It distinguishes "fd was open" (saved as a dup, to be
// restored by dup2+close) from "fd was not open" (restored by close).
func (sh *Shell) saveFD(unit int) error {
	if sh.env == nil {
		return nil
	}
	prior, err := sh.env.fds.Get(uint(unit))
	if err != nil {
		return err
	}
	if prior.Saved {
		return nil
	}
	dupfd, err := sh.Host.Dup(unit)
	if err != nil {
		return sh.env.fds.Set(uint(unit), fdtable.Slot{Closed: true, Saved: true})
	}
	return sh.env.fds.Set(uint(unit), fdtable.Slot{Dup: dupfd, Saved: true})
}

// installFD saves unit's prior state (if not already saved this frame) and
// then dup2s src into unit, closing src afterward (src is the shell's own
// temporary handle on the freshly opened/duplicated file).
func (sh *Shell) installFD(unit, src int) error {
	if err := sh.saveFD(unit); err != nil {
		return err
	}
	if err := sh.Host.Dup2(src, unit); err != nil {
		return err
	}
	if src != unit {
		sh.Host.Close(src)
	}
	return nil
}

// restoreFD undoes one saved Slot on environment-frame pop; popEnv calls it
// for each saved fd in descending fd order.
func (sh *Shell) restoreFD(fd int, s fdtable.Slot) {
	if s.Closed {
		sh.Host.Close(fd)
		return
	}
	sh.Host.Dup2(s.Dup, fd)
	sh.Host.Close(s.Dup)
}
