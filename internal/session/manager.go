// Package session keeps the ssh tunnel and the system SOCKS proxy setting in
// step: one current connection, started tunnel-first and torn down together.
package session

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hegde-atri/chaussettes/internal/netsetup"
	"github.com/hegde-atri/chaussettes/internal/types"
)

// Tunnel is the subprocess side of a connection
type Tunnel interface {
	Connect(server types.Server) bool
	Disconnect() bool
	IsConnected() bool
}

// Proxy is the OS routing side of a connection
type Proxy interface {
	Enable(iface string, port int) bool
	Disable(iface string) bool
	CurrentSettings(iface string) (netsetup.Settings, bool)
}

// Locator resolves the network service to configure
type Locator interface {
	Locate() string
}

// Result is the outcome of a connect or disconnect request
type Result struct {
	OK      bool
	Message string
}

// Manager is the single owner of the current connection. It is created once
// per process and is not safe for concurrent use.
type Manager struct {
	tunnel Tunnel
	proxy  Proxy
	iface  string
	log    logrus.FieldLogger

	current *types.Server
}

// New detects the network interface once and returns an idle manager
func New(tunnel Tunnel, proxy Proxy, locator Locator, log logrus.FieldLogger) *Manager {
	iface := locator.Locate()
	log.Infof("Detected primary network interface: %s", iface)
	return &Manager{
		tunnel: tunnel,
		proxy:  proxy,
		iface:  iface,
		log:    log,
	}
}

// Connect starts the tunnel for server and then routes the system proxy
// through it. A proxy failure after a live tunnel still leaves the server
// connected; the message says the proxy was not applied.
func (m *Manager) Connect(server types.Server) Result {
	if m.current != nil {
		m.log.Warnf("Connect to %s rejected: already connected to %s", server.DisplayName(), m.current.DisplayName())
		return Result{Message: fmt.Sprintf("Already connected to %s", m.current.DisplayName())}
	}

	m.log.Infof("Connecting to server: %s (%s:%d)", server.DisplayName(), server.Host, server.SSHPort)
	if !m.tunnel.Connect(server) {
		m.log.Errorf("Failed to connect to %s", server.DisplayName())
		return Result{Message: fmt.Sprintf("Failed to connect to %s", server.DisplayName())}
	}

	m.log.Info("SSH tunnel established, enabling proxy")
	proxyOK := m.proxy.Enable(m.iface, server.SOCKSPort)

	current := server
	m.current = &current

	if !proxyOK {
		m.log.Warnf("Tunnel to %s is up but the system proxy was not applied on %s", server.DisplayName(), m.iface)
		return Result{
			OK:      true,
			Message: fmt.Sprintf("Connected to %s (system proxy not applied on %s)", server.DisplayName(), m.iface),
		}
	}

	m.log.Infof("Successfully connected to %s", server.DisplayName())
	return Result{OK: true, Message: fmt.Sprintf("Connected to %s", server.DisplayName())}
}

// Disconnect stops the tunnel and disables the proxy, attempting both
// whatever either returns.
func (m *Manager) Disconnect() Result {
	if m.current == nil {
		return Result{Message: "Not connected"}
	}

	name := m.current.DisplayName()
	m.log.Infof("Disconnecting from server: %s", name)

	if !m.tunnel.Disconnect() {
		m.log.Warn("Tunnel was not running at disconnect")
	}
	if !m.proxy.Disable(m.iface) {
		m.log.Warnf("Could not disable SOCKS proxy on %s", m.iface)
	}

	m.current = nil
	m.log.Info("Disconnected successfully")
	return Result{OK: true, Message: fmt.Sprintf("Disconnected from %s", name)}
}

// Shutdown tears down any current connection before the program exits
func (m *Manager) Shutdown() {
	if m.current == nil {
		return
	}
	m.log.Info("Shutting down with an active connection, tearing it down")
	m.Disconnect()
}

// Current returns the connected server, if any
func (m *Manager) Current() (types.Server, bool) {
	if m.current == nil {
		return types.Server{}, false
	}
	return *m.current, true
}

// IsConnected re-checks the tunnel process rather than trusting Current
func (m *Manager) IsConnected() bool {
	return m.current != nil && m.tunnel.IsConnected()
}

// Interface is the network service detected at startup
func (m *Manager) Interface() string {
	return m.iface
}

// ProxySettings reads the system SOCKS proxy settings of the interface
func (m *Manager) ProxySettings() (netsetup.Settings, bool) {
	return m.proxy.CurrentSettings(m.iface)
}
