//go:build !windows

package mksh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
)

// osProcessHost is the default ProcessHost: real child processes via
// os/exec, real fd operations via the syscall package. It retains every
// *os.File it opens/dups in a map keyed by fd number so the Go runtime
// never finalizes (and silently closes) one behind the shell's back —
// the shell, not the garbage collector, owns these descriptors' lifetime.
type osProcessHost struct {
	mu    sync.Mutex
	files map[int]*os.File
}

// NewOSProcessHost returns the default real ProcessHost, seeded with the
// process's own standard streams at fd 0/1/2.
func NewOSProcessHost() ProcessHost {
	return &osProcessHost{files: map[int]*os.File{
		0: os.Stdin,
		1: os.Stdout,
		2: os.Stderr,
	}}
}

func (h *osProcessHost) track(f *os.File) int {
	fd := int(f.Fd())
	h.mu.Lock()
	h.files[fd] = f
	h.mu.Unlock()
	return fd
}

func (h *osProcessHost) Start(ctx context.Context, argv []string, env []string, files [3]*os.File) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.Stdin, cmd.Stdout, cmd.Stderr = files[0], files[1], files[2]
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

func (h *osProcessHost) Open(name string, flag int, perm os.FileMode) (int, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return -1, err
	}
	return h.track(f), nil
}

func (h *osProcessHost) Dup(fd int) (int, error) {
	newfd, err := syscall.Dup(fd)
	if err != nil {
		return -1, err
	}
	h.track(os.NewFile(uintptr(newfd), "<dup>"))
	return newfd, nil
}

func (h *osProcessHost) Dup2(oldfd, newfd int) error {
	if err := syscall.Dup2(oldfd, newfd); err != nil {
		return err
	}
	h.track(os.NewFile(uintptr(newfd), "<dup2>"))
	return nil
}

func (h *osProcessHost) Close(fd int) error {
	h.mu.Lock()
	f, ok := h.files[fd]
	if ok {
		delete(h.files, fd)
	}
	h.mu.Unlock()
	if ok {
		return f.Close()
	}
	return syscall.Close(fd)
}

func (h *osProcessHost) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }

func (h *osProcessHost) Reader(fd int) (io.Reader, error) {
	h.mu.Lock()
	f, ok := h.files[fd]
	h.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fd %d not open", fd)
	}
	return f, nil
}

func (h *osProcessHost) Pipe() (r, w int, err error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return -1, -1, err
	}
	return h.track(pr), h.track(pw), nil
}

// osProcess adapts an *exec.Cmd to the Process interface.
type osProcess struct{ cmd *exec.Cmd }

func (p *osProcess) Pid() int { return p.cmd.Process.Pid }

func (p *osProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

// Wait blocks for the child and translates its termination into the exit
// status convention of spec §6 ("0 success; ...; >128 signal").
func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if ws, ok := ee.Sys().(syscall.WaitStatus); ok {
			if ws.Signaled() {
				return 128 + int(ws.Signal()), nil
			}
			return ws.ExitStatus(), nil
		}
		return 1, nil
	}
	return -1, err
}
