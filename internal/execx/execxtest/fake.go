// Package execxtest provides an in-memory execx.Runner for tests.
package execxtest

import (
	"errors"
	"strings"
	"sync"
)

// Fake answers commands from a table keyed by the joined command line
// ("networksetup -getinfo Wi-Fi"). Unknown commands fail.
type Fake struct {
	mu      sync.Mutex
	outputs map[string]string
	fails   map[string]error
	calls   []string
}

func NewFake() *Fake {
	return &Fake{
		outputs: make(map[string]string),
		fails:   make(map[string]error),
	}
}

// Set registers the output returned for a command line.
func (f *Fake) Set(line, output string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[line] = output
	return f
}

// Fail makes a command line return err.
func (f *Fake) Fail(line string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[line] = err
	return f
}

// Calls returns every command line executed so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) Run(name string, args ...string) error {
	_, err := f.Output(name, args...)
	return err
}

func (f *Fake) Output(name string, args ...string) (string, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, line)
	if err, ok := f.fails[line]; ok {
		return "", err
	}
	if out, ok := f.outputs[line]; ok {
		return strings.TrimSpace(out), nil
	}
	return "", errors.New("unexpected command: " + line)
}
