package netsetup

import (
	"bufio"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hegde-atri/chaussettes/internal/execx"
)

// LoopbackAddr is where the tunnel's SOCKS listener is bound
const LoopbackAddr = "127.0.0.1"

// Settings is a snapshot of a service's SOCKS proxy configuration.
// Fields missing from the networksetup output keep their zero value.
type Settings struct {
	Enabled bool
	Server  string
	Port    int
}

// Controller toggles the SOCKS proxy of a network service
type Controller struct {
	runner execx.Runner
	log    logrus.FieldLogger
}

// NewController creates a proxy controller backed by networksetup
func NewController(runner execx.Runner, log logrus.FieldLogger) *Controller {
	return &Controller{runner: runner, log: log}
}

// Enable points the service's SOCKS proxy at 127.0.0.1:port and turns it on.
// Both commands are always attempted; a failure in either returns false
// without undoing the other.
func (c *Controller) Enable(iface string, port int) bool {
	if iface == "" {
		c.log.Error("Cannot enable SOCKS proxy: no network interface resolved")
		return false
	}
	c.log.Infof("Enabling SOCKS proxy on interface %s at port %d", iface, port)

	serverOK := c.setServer(iface, port)
	stateOK := c.setState(iface, "on")
	if !serverOK || !stateOK {
		return false
	}

	c.log.Info("SOCKS proxy enabled successfully")
	return true
}

// Disable turns the service's SOCKS proxy off
func (c *Controller) Disable(iface string) bool {
	if iface == "" {
		c.log.Error("Cannot disable SOCKS proxy: no network interface resolved")
		return false
	}
	c.log.Infof("Disabling SOCKS proxy on interface %s", iface)

	if !c.setState(iface, "off") {
		return false
	}
	c.log.Info("SOCKS proxy disabled successfully")
	return true
}

// IsEnabled reports whether networksetup shows the proxy as enabled
func (c *Controller) IsEnabled(iface string) bool {
	settings, ok := c.CurrentSettings(iface)
	enabled := ok && settings.Enabled
	c.log.Debugf("Proxy enabled check: %v", enabled)
	return enabled
}

// CurrentSettings queries and parses the service's SOCKS proxy settings.
// ok is false when no interface is resolved or the query failed.
func (c *Controller) CurrentSettings(iface string) (Settings, bool) {
	if iface == "" {
		return Settings{}, false
	}
	out, err := c.runner.Output("networksetup", "-getsocksfirewallproxy", iface)
	if err != nil {
		c.log.Debugf("Could not read proxy settings for %s: %v", iface, err)
		return Settings{}, false
	}

	settings := ParseSettings(out)
	c.log.Debugf("Current proxy settings: %+v", settings)
	return settings, true
}

func (c *Controller) setServer(iface string, port int) bool {
	c.log.Debugf("Setting proxy server to %s:%d", LoopbackAddr, port)
	if err := c.runner.Run("networksetup", "-setsocksfirewallproxy", iface, LoopbackAddr, strconv.Itoa(port)); err != nil {
		c.log.Errorf("Failed to set proxy server: %v", err)
		return false
	}
	return true
}

func (c *Controller) setState(iface, state string) bool {
	c.log.Debugf("Setting proxy state to: %s", state)
	if err := c.runner.Run("networksetup", "-setsocksfirewallproxystate", iface, state); err != nil {
		c.log.Errorf("Failed to set proxy state: %v", err)
		return false
	}
	return true
}

// ParseSettings reads "Key: value" lines from -getsocksfirewallproxy output.
// Unknown and malformed lines are ignored.
func ParseSettings(output string) Settings {
	var s Settings
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Enabled":
			s.Enabled = value == "Yes"
		case "Server":
			s.Server = value
		case "Port":
			// non-numeric ports read as zero
			s.Port, _ = strconv.Atoi(value)
		}
	}
	return s
}
