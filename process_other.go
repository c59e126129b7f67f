//go:build windows

package mksh

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// osProcessHost on non-Unix hosts supports child process creation but not
// the raw dup2-based fd-table manipulation the Redirection Engine (§4.5)
// wants; this core's scope is the POSIX-plus-Korn shell lineage (spec §1),
// so Windows gets a best-effort Start and reports Dup/Dup2 as unsupported
// rather than carrying a second real implementation.
type osProcessHost struct{}

func NewOSProcessHost() ProcessHost { return osProcessHost{} }

func (osProcessHost) Start(ctx context.Context, argv []string, env []string, files [3]*os.File) (Process, error) {
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

var errUnsupported = errors.New("unsupported on this platform")

func (osProcessHost) Open(name string, flag int, perm os.FileMode) (int, error) {
	return -1, errUnsupported
}
func (osProcessHost) Dup(fd int) (int, error)          { return -1, errUnsupported }
func (osProcessHost) Dup2(oldfd, newfd int) error      { return errUnsupported }
func (osProcessHost) Close(fd int) error               { return errUnsupported }
func (osProcessHost) Stat(name string) (os.FileInfo, error) { return os.Stat(name) }
func (osProcessHost) Pipe() (r, w int, err error)      { return -1, -1, errUnsupported }
func (osProcessHost) Reader(fd int) (io.Reader, error) { return nil, errUnsupported }

type osProcess struct{ cmd *exec.Cmd }

func (p *osProcess) Pid() int                   { return p.cmd.Process.Pid }
func (p *osProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *osProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode(), nil
	}
	return -1, err
}
