package tui

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/hegde-atri/chaussettes/internal/netsetup"
	"github.com/hegde-atri/chaussettes/internal/session"
	"github.com/hegde-atri/chaussettes/internal/types"
)

// refreshInterval is how often the tunnel liveness is re-checked
const refreshInterval = 2 * time.Second

// Session is the connection orchestrator as seen by the UI
type Session interface {
	Connect(server types.Server) session.Result
	Disconnect() session.Result
	Shutdown()
	Current() (types.Server, bool)
	IsConnected() bool
	Interface() string
	ProxySettings() (netsetup.Settings, bool)
}

// Registry persists saved servers
type Registry interface {
	All() ([]types.Server, error)
	Save(server types.Server) error
	Delete(id string) error
}

// ProbeFunc dials target through the SOCKS proxy at proxyAddr
type ProbeFunc func(ctx context.Context, proxyAddr, target string, timeout time.Duration) (time.Duration, error)

// Deps are the collaborators the UI drives
type Deps struct {
	Session      Session
	Registry     Registry
	Probe        ProbeFunc
	ProbeTarget  string
	ProbeTimeout time.Duration
	Log          logrus.FieldLogger
}

// connectDoneMsg is sent when a connect request returns
type connectDoneMsg struct {
	result   session.Result
	settings netsetup.Settings
}

// disconnectDoneMsg is sent when a disconnect request returns
type disconnectDoneMsg struct {
	result   session.Result
	settings netsetup.Settings
}

// probeDoneMsg carries the outcome of a SOCKS probe
type probeDoneMsg struct {
	latency time.Duration
	err     error
}

// tickMsg drives the periodic liveness refresh
type tickMsg time.Time

// App represents the Chaussettes TUI application
type App struct {
	version string
	program *tea.Program
	session Session
	calls   *inflight
}

// New loads the saved servers and sets up the bubbletea program
func New(version string, deps Deps) (*App, error) {
	return newApp(version, deps, tea.WithAltScreen())
}

func newApp(version string, deps Deps, opts ...tea.ProgramOption) (*App, error) {
	m, err := newModel(version, deps)
	if err != nil {
		return nil, err
	}

	p := tea.NewProgram(m, opts...)

	return &App{
		version: version,
		program: p,
		session: deps.Session,
		calls:   m.calls,
	}, nil
}

// Run starts the TUI and blocks until it exits. The program can stop while
// a connect or disconnect is still running (SIGTERM), so Run waits for it
// before tearing down whatever connection is left.
func (a *App) Run() error {
	_, err := a.program.Run()
	a.calls.close()
	a.session.Shutdown()
	return err
}

// inflight tracks orchestrator calls running in bubbletea commands. Once
// closed, calls that have not started yet are skipped.
type inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func (f *inflight) start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.wg.Add(1)
	return true
}

func (f *inflight) done() {
	f.wg.Done()
}

// close refuses new calls and waits for running ones to return
func (f *inflight) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}

type mode int

const (
	modeList mode = iota
	modeForm
	modeConfirmDelete
)

// model is the bubbletea state. Orchestrator calls run inside commands and
// busy keeps a second one from starting until the first reports back.
type model struct {
	version string
	deps    Deps
	log     logrus.FieldLogger

	servers []types.Server
	table   table.Model
	form    form
	mode    mode
	width   int
	height  int

	status   string
	busy     bool
	down     bool
	settings netsetup.Settings
	calls    *inflight
}

func newModel(version string, deps Deps) (model, error) {
	servers, err := deps.Registry.All()
	if err != nil {
		return model{}, fmt.Errorf("failed to load servers: %w", err)
	}
	log := deps.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := model{
		version: version,
		deps:    deps,
		log:     log,
		servers: servers,
		table:   createServerTable(),
		status:  "Ready",
		calls:   &inflight{},
	}
	if s, ok := deps.Session.ProxySettings(); ok {
		m.settings = s
	}
	m.refreshRows()
	return m, nil
}

// Init starts the liveness refresh loop
func (m model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update handles incoming messages and updates the model state
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// header (~5 lines) and status bar (~3 lines)
		m.table.SetWidth(max(m.width-4, 20))
		m.table.SetHeight(max(m.height-10, 3))
		return m, nil

	case tickMsg:
		m.refreshLiveness()
		return m, tick()

	case connectDoneMsg:
		m.busy = false
		m.down = false
		m.status = msg.result.Message
		m.settings = msg.settings
		m.refreshRows()
		return m, nil

	case disconnectDoneMsg:
		m.busy = false
		m.down = false
		m.status = msg.result.Message
		m.settings = msg.settings
		m.refreshRows()
		return m, nil

	case probeDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.log.Warnf("SOCKS probe failed: %v", msg.err)
			m.status = fmt.Sprintf("Probe to %s failed", m.deps.ProbeTarget)
		} else {
			m.status = fmt.Sprintf("Probe to %s OK in %s", m.deps.ProbeTarget, msg.latency.Round(time.Millisecond))
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeForm:
			return m.updateForm(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg), nil
		}
		return m.updateList(msg)
	}

	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Only navigation is allowed while an orchestrator call is in flight
	if m.busy {
		switch msg.String() {
		case "q", "ctrl+c":
			m.status = "Busy, please wait"
			return m, nil
		case "a", "e", "d", "delete", "c", "enter", "x", "p":
			return m, nil
		}
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "a":
		m.mode = modeForm
		m.form = newForm(types.NewServer(), false)
		cmd := m.form.focusCmd()
		return m, cmd

	case "e":
		server, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.mode = modeForm
		m.form = newForm(server, true)
		cmd := m.form.focusCmd()
		return m, cmd

	case "d", "delete":
		server, ok := m.selected()
		if !ok {
			return m, nil
		}
		if current, connected := m.deps.Session.Current(); connected && current.ID == server.ID {
			m.status = fmt.Sprintf("Disconnect before deleting %s", server.DisplayName())
			return m, nil
		}
		m.mode = modeConfirmDelete
		return m, nil

	case "c", "enter":
		server, ok := m.selected()
		if !ok {
			return m, nil
		}
		if errs := server.Errors(); len(errs) > 0 {
			m.status = "Error: " + strings.Join(errs, "; ")
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("Connecting to %s...", server.DisplayName())
		return m, m.connectCmd(server)

	case "x":
		m.busy = true
		m.status = "Disconnecting..."
		return m, m.disconnectCmd()

	case "p":
		server, connected := m.deps.Session.Current()
		if !connected {
			m.status = "Not connected"
			return m, nil
		}
		if m.deps.Probe == nil {
			return m, nil
		}
		m.busy = true
		m.status = fmt.Sprintf("Probing %s through %s...", m.deps.ProbeTarget, server.DisplayName())
		return m, m.probeCmd(server)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m model) updateConfirm(msg tea.KeyMsg) model {
	switch msg.String() {
	case "y":
		server, ok := m.selected()
		m.mode = modeList
		if !ok {
			return m
		}
		if err := m.deps.Registry.Delete(server.ID); err != nil {
			m.log.Errorf("Failed to delete server %s: %v", server.ID, err)
			m.status = fmt.Sprintf("Could not delete %s", server.DisplayName())
			return m
		}
		m.log.Infof("Deleted server %s", server.DisplayName())
		m.status = fmt.Sprintf("Deleted %s", server.DisplayName())
		m.reload()
	case "n", "esc", "q":
		m.mode = modeList
	}
	return m
}

func (m model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "ctrl+s":
		return m.submitForm(), nil
	case "enter":
		if m.form.onLast() {
			return m.submitForm(), nil
		}
		cmd := m.form.next()
		return m, cmd
	case "tab", "down":
		cmd := m.form.next()
		return m, cmd
	case "shift+tab", "up":
		cmd := m.form.prev()
		return m, cmd
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg)
	return m, cmd
}

func (m model) submitForm() model {
	server := m.form.server()
	if errs := server.Errors(); len(errs) > 0 {
		m.form.err = "Error: " + strings.Join(errs, "; ")
		return m
	}
	if err := m.deps.Registry.Save(server); err != nil {
		m.log.Errorf("Failed to save server %s: %v", server.ID, err)
		m.form.err = "Error: could not save server"
		return m
	}

	m.log.Infof("Saved server %s", server.DisplayName())
	m.mode = modeList
	m.status = fmt.Sprintf("Saved %s", server.DisplayName())
	m.reload()
	return m
}

// refreshLiveness marks the current tunnel down if its process has died
func (m *model) refreshLiveness() {
	if m.busy || m.down {
		return
	}
	current, connected := m.deps.Session.Current()
	if !connected || m.deps.Session.IsConnected() {
		return
	}
	m.log.Warnf("Tunnel to %s is no longer running", current.DisplayName())
	m.down = true
	m.status = fmt.Sprintf("Tunnel to %s is down, press x to clean up", current.DisplayName())
	m.refreshRows()
}

func (m model) connectCmd(server types.Server) tea.Cmd {
	sess := m.deps.Session
	calls := m.calls
	return func() tea.Msg {
		if !calls.start() {
			return nil
		}
		defer calls.done()
		res := sess.Connect(server)
		settings, _ := sess.ProxySettings()
		return connectDoneMsg{result: res, settings: settings}
	}
}

func (m model) disconnectCmd() tea.Cmd {
	sess := m.deps.Session
	calls := m.calls
	return func() tea.Msg {
		if !calls.start() {
			return nil
		}
		defer calls.done()
		res := sess.Disconnect()
		settings, _ := sess.ProxySettings()
		return disconnectDoneMsg{result: res, settings: settings}
	}
}

func (m model) probeCmd(server types.Server) tea.Cmd {
	probe := m.deps.Probe
	target := m.deps.ProbeTarget
	timeout := m.deps.ProbeTimeout
	addr := net.JoinHostPort(netsetup.LoopbackAddr, strconv.Itoa(server.SOCKSPort))
	return func() tea.Msg {
		latency, err := probe(context.Background(), addr, target, timeout)
		return probeDoneMsg{latency: latency, err: err}
	}
}

// selected returns the server under the table cursor
func (m model) selected() (types.Server, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.servers) {
		return types.Server{}, false
	}
	return m.servers[i], true
}

// reload re-reads the registry after a change
func (m *model) reload() {
	servers, err := m.deps.Registry.All()
	if err != nil {
		m.log.Errorf("Failed to reload servers: %v", err)
		m.status = "Error: could not read saved servers"
		return
	}
	m.servers = servers
	m.refreshRows()
}

func (m *model) refreshRows() {
	current, connected := m.deps.Session.Current()

	rows := make([]table.Row, len(m.servers))
	for i, s := range m.servers {
		status := "○ Disconnected"
		if connected && s.ID == current.ID {
			status = "● Connected"
			if m.down {
				status = "● Down"
			}
		}
		rows[i] = table.Row{s.DisplayName(), fmt.Sprintf("%s:%d", s.Host, s.SSHPort), strconv.Itoa(s.SOCKSPort), status}
	}
	m.table.SetRows(rows)

	if c := m.table.Cursor(); len(rows) > 0 && c >= len(rows) {
		m.table.SetCursor(len(rows) - 1)
	}
}
