package sshtunnel

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Process is a spawned tunnel subprocess
type Process interface {
	Pid() int
	Signal(sig os.Signal) error
	// Done is closed once the process has exited and been reaped
	Done() <-chan struct{}
	// Err is the wait error, e.g. "exit status 255". Valid after Done.
	Err() error
}

// Spawner starts tunnel subprocesses
type Spawner interface {
	Spawn(name string, args ...string) (Process, error)
}

// ProbeFunc checks a PID without affecting it. It returns nil when the
// process exists and unix.ESRCH when it does not.
type ProbeFunc func(pid int) error

// SignalZero probes a PID with kill(pid, 0)
func SignalZero(pid int) error {
	if pid <= 0 {
		return unix.ESRCH
	}
	return unix.Kill(pid, 0)
}

// isNoSuchProcess reports whether a probe error means the process is gone
func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH) || errors.Is(err, os.ErrProcessDone)
}

// ExecSpawner runs subprocesses with os/exec, with stdin, stdout and stderr
// attached to the null device.
type ExecSpawner struct{}

func (ExecSpawner) Spawn(name string, args ...string) (Process, error) {
	cmd := exec.Command(name, args...)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", name, err)
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}

	// Reap in the background so an exited ssh does not linger as a zombie
	// that still answers kill(pid, 0).
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}
