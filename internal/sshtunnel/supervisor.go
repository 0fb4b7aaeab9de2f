// Package sshtunnel supervises the ssh subprocess that provides the local
// SOCKS endpoint (dynamic port forwarding).
package sshtunnel

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/hegde-atri/chaussettes/internal/types"
)

const (
	DefaultBinary            = "ssh"
	DefaultGracePeriod       = 2 * time.Second
	DefaultStopTimeout       = 5 * time.Second
	DefaultKeepAliveInterval = 30
	DefaultKeepAliveCountMax = 3

	// LoopbackAddr is the address the SOCKS listener binds to
	LoopbackAddr = "127.0.0.1"

	exitReasonWait = 500 * time.Millisecond
)

// State is the supervisor's position in its lifecycle
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	}
	return "Unknown"
}

// Options tunes the ssh invocation and the supervisor's waits
type Options struct {
	Binary            string
	GracePeriod       time.Duration // wait after spawn before the liveness check
	StopTimeout       time.Duration // wait for exit after SIGTERM before SIGKILL
	KeepAliveInterval int
	KeepAliveCountMax int
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = DefaultBinary
	}
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.KeepAliveInterval <= 0 {
		o.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if o.KeepAliveCountMax <= 0 {
		o.KeepAliveCountMax = DefaultKeepAliveCountMax
	}
	return o
}

// Handle describes the live tunnel subprocess
type Handle struct {
	PID    int
	Server types.Server
	Alive  bool
}

// Supervisor owns at most one ssh subprocess. It is not safe for
// concurrent use; callers drive it from a single goroutine.
type Supervisor struct {
	opts    Options
	spawner Spawner
	probe   ProbeFunc
	log     logrus.FieldLogger

	state  State
	server types.Server
	proc   Process
}

// Option customises a Supervisor
type Option func(*Supervisor)

// WithSpawner replaces the os/exec based spawner
func WithSpawner(sp Spawner) Option {
	return func(s *Supervisor) { s.spawner = sp }
}

// WithProbe replaces the kill(pid, 0) liveness probe
func WithProbe(p ProbeFunc) Option {
	return func(s *Supervisor) { s.probe = p }
}

// NewSupervisor creates an idle supervisor
func NewSupervisor(opts Options, log logrus.FieldLogger, options ...Option) *Supervisor {
	s := &Supervisor{
		opts:    opts.withDefaults(),
		spawner: ExecSpawner{},
		probe:   SignalZero,
		log:     log,
		state:   StateIdle,
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// State returns the current lifecycle state
func (s *Supervisor) State() State {
	return s.state
}

// Handle returns the live tunnel, with liveness re-checked
func (s *Supervisor) Handle() (Handle, bool) {
	if s.proc == nil {
		return Handle{}, false
	}
	return Handle{
		PID:    s.proc.Pid(),
		Server: s.server,
		Alive:  s.processAlive(s.proc),
	}, true
}

// Command returns the ssh arguments used to tunnel to server, without the
// binary name. The key file is only passed when it exists on disk.
func (s *Supervisor) Command(server types.Server) []string {
	args := []string{
		"-N",
		"-D", fmt.Sprintf("%s:%d", LoopbackAddr, server.SOCKSPort),
		"-p", strconv.Itoa(server.SSHPort),
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", fmt.Sprintf("ServerAliveInterval=%d", s.opts.KeepAliveInterval),
		"-o", fmt.Sprintf("ServerAliveCountMax=%d", s.opts.KeepAliveCountMax),
		"-o", "ExitOnForwardFailure=yes",
		"-o", "BatchMode=yes",
	}

	if key := types.ExpandHome(server.KeyPath); key != "" {
		if _, err := os.Stat(key); err == nil {
			args = append(args, "-i", key)
		}
	}

	return append(args, server.Target())
}

// Connect spawns ssh for server and reports whether it survived the grace
// period. It never panics or returns an error; failures are logged.
func (s *Supervisor) Connect(server types.Server) (ok bool) {
	s.log.Infof("Attempting to connect to server: %s (%s:%d)", server.DisplayName(), server.Host, server.SSHPort)

	if s.state != StateIdle {
		s.log.Warnf("Tunnel supervisor is %s, refusing to connect", s.state)
		return false
	}
	if errs := server.Errors(); len(errs) > 0 {
		s.log.Warnf("Refusing to connect to invalid server: %v", errs)
		return false
	}

	s.state = StateStarting
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("SSH connection error for %s: %v", server.Host, r)
			s.reset()
			ok = false
		}
	}()

	s.logKey(server.KeyPath)

	args := s.Command(server)
	s.log.Debugf("Executing SSH command: %s %v", s.opts.Binary, args)

	proc, err := s.spawner.Spawn(s.opts.Binary, args...)
	if err != nil {
		s.log.Errorf("SSH connection error for %s: %v", server.Host, err)
		s.reset()
		return false
	}
	s.log.Debugf("SSH process started with PID: %d", proc.Pid())

	// Give auth failures and unreachable hosts time to exit
	time.Sleep(s.opts.GracePeriod)

	if !s.processAlive(proc) {
		s.discard(proc)
		s.log.Errorf("SSH process died immediately (%s)", exitReason(proc))
		s.reset()
		return false
	}

	s.proc = proc
	s.server = server
	s.state = StateRunning
	s.log.Infof("SSH tunnel successfully started for %s", server.DisplayName())
	s.log.Infof("SOCKS proxy available at %s:%d", LoopbackAddr, server.SOCKSPort)
	return true
}

// Disconnect stops the running tunnel: SIGTERM, then SIGKILL if the process
// outlives the stop timeout. It returns false only when nothing is running.
func (s *Supervisor) Disconnect() bool {
	if s.state != StateRunning || s.proc == nil {
		return false
	}

	s.log.Infof("Disconnecting from server: %s", s.server.DisplayName())
	s.state = StateStopping
	proc := s.proc

	if err := proc.Signal(unix.SIGTERM); err != nil {
		s.log.Debugf("SIGTERM to PID %d failed: %v", proc.Pid(), err)
	}

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()

	select {
	case <-proc.Done():
		s.log.Debugf("SSH process %d exited", proc.Pid())
	case <-timer.C:
		s.log.Warn("SSH process did not exit gracefully, forcing kill")
		// may already be gone
		_ = proc.Signal(unix.SIGKILL)
	}

	s.reset()
	s.log.Info("SSH tunnel disconnected successfully")
	return true
}

// IsConnected reports whether a tunnel exists and its process is alive now
func (s *Supervisor) IsConnected() bool {
	return s.state == StateRunning && s.proc != nil && s.processAlive(s.proc)
}

// processAlive checks the process without signalling it. Probe errors other
// than "no such process" are logged and count as dead.
func (s *Supervisor) processAlive(p Process) (alive bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("Liveness probe panicked: %v", r)
			alive = false
		}
	}()

	select {
	case <-p.Done():
		return false
	default:
	}

	err := s.probe(p.Pid())
	switch {
	case err == nil:
		return true
	case isNoSuchProcess(err):
		return false
	default:
		s.log.Warnf("Liveness probe for PID %d failed: %v", p.Pid(), err)
		return false
	}
}

// discard kills a process judged dead that has not been reaped yet.
// An unreaped PID cannot have been reused, so the signal is safe.
func (s *Supervisor) discard(p Process) {
	select {
	case <-p.Done():
	default:
		_ = p.Signal(unix.SIGKILL)
	}
}

// exitReason reports how a process judged dead ended, waiting briefly for
// the reaper to collect its status.
func exitReason(p Process) string {
	select {
	case <-p.Done():
	case <-time.After(exitReasonWait):
		return "exit status unknown"
	}
	if err := p.Err(); err != nil {
		return err.Error()
	}
	return "exit status 0"
}

func (s *Supervisor) logKey(path string) {
	if path == "" {
		s.log.Debug("No key file configured, relying on ssh defaults")
		return
	}
	info, err := InspectKey(path)
	if err != nil {
		s.log.Debugf("Key file %s not used: %v", path, err)
		return
	}
	s.log.Debugf("Using key %s", info)
}

func (s *Supervisor) reset() {
	s.proc = nil
	s.server = types.Server{}
	s.state = StateIdle
}
