// Package execx wraps the OS commands chaussettes shells out to, so callers
// can be tested without touching the real network configuration.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout bounds a single command; networksetup can hang when
// configd is busy.
const DefaultTimeout = 15 * time.Second

// Runner abstracts command execution.
type Runner interface {
	// Run executes a command for its side effect, discarding stdout.
	Run(name string, args ...string) error
	// Output executes a command and returns its trimmed stdout.
	Output(name string, args ...string) (string, error)
}

// OSRunner executes commands on the host via os/exec.
type OSRunner struct {
	Timeout time.Duration
}

func NewOSRunner() *OSRunner {
	return &OSRunner{Timeout: DefaultTimeout}
}

func (r *OSRunner) Run(name string, args ...string) error {
	ctx, cancel := r.context()
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commandError(name, args, err, stderr.String())
	}
	return nil
}

func (r *OSRunner) Output(name string, args ...string) (string, error) {
	ctx, cancel := r.context()
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", commandError(name, args, err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (r *OSRunner) context() (context.Context, context.CancelFunc) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func commandError(name string, args []string, err error, stderr string) error {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: timed out", line)
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		return fmt.Errorf("%s: %w: %s", line, err, msg)
	}
	return fmt.Errorf("%s: %w", line, err)
}
