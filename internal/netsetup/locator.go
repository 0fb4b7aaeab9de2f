// Package netsetup finds the active macOS network service and drives its
// SOCKS proxy setting through networksetup.
package netsetup

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hegde-atri/chaussettes/internal/execx"
)

// DefaultFallbackService is used when no active service can be detected
const DefaultFallbackService = "Wi-Fi"

var (
	routeInterfaceRe = regexp.MustCompile(`interface:\s*(\S+)`)
	hardwarePortRe   = regexp.MustCompile(`^Hardware Port:\s*(.+)$`)
	deviceRe         = regexp.MustCompile(`^Device:\s*(\S+)`)
	ipAddressRe      = regexp.MustCompile(`(?m)^IP address:\s*(\d+\.\d+\.\d+\.\d+)`)
)

// skippedServiceWords marks services that never carry default traffic
var skippedServiceWords = []string{"vpn", "virtual", "thunderbolt bridge"}

// Locator resolves the network service that should carry the proxy setting
type Locator struct {
	runner   execx.Runner
	log      logrus.FieldLogger
	fallback string
}

// NewLocator creates a locator; an empty fallback means DefaultFallbackService
func NewLocator(runner execx.Runner, log logrus.FieldLogger, fallback string) *Locator {
	if fallback == "" {
		fallback = DefaultFallbackService
	}
	return &Locator{runner: runner, log: log, fallback: fallback}
}

// Locate walks the detection chain and always returns a service name:
// default route device mapped to its hardware port, then the first active
// service, then the fallback.
func (l *Locator) Locate() string {
	l.log.Debug("Detecting primary network interface")

	if device := l.defaultRouteDevice(); device != "" {
		if service := l.serviceForDevice(device); service != "" {
			l.log.Infof("Detected primary interface from default route: %s (%s)", service, device)
			return service
		}
		l.log.Debugf("No hardware port found for device %s", device)
	}

	if service := l.firstActiveService(); service != "" {
		l.log.Infof("Detected primary interface (first active): %s", service)
		return service
	}

	l.log.Warnf("Could not detect primary interface, falling back to %s", l.fallback)
	return l.fallback
}

func (l *Locator) defaultRouteDevice() string {
	out, err := l.runner.Output("route", "-n", "get", "default")
	if err != nil {
		l.log.Debugf("Could not get default route: %v", err)
		return ""
	}
	m := routeInterfaceRe.FindStringSubmatch(out)
	if m == nil {
		return ""
	}
	l.log.Debugf("Default route interface: %s", m[1])
	return m[1]
}

func (l *Locator) serviceForDevice(device string) string {
	out, err := l.runner.Output("networksetup", "-listallhardwareports")
	if err != nil {
		l.log.Debugf("Could not list hardware ports: %v", err)
		return ""
	}
	return ServiceForDevice(out, device)
}

func (l *Locator) firstActiveService() string {
	out, err := l.runner.Output("networksetup", "-listallnetworkservices")
	if err != nil {
		l.log.Debugf("Could not list network services: %v", err)
		return ""
	}

	for _, service := range CandidateServices(out) {
		info, err := l.runner.Output("networksetup", "-getinfo", service)
		if err != nil {
			l.log.Debugf("Could not get info for %s: %v", service, err)
			continue
		}
		m := ipAddressRe.FindStringSubmatch(info)
		if m == nil {
			continue
		}
		if ip := m[1]; ip != "0.0.0.0" {
			return service
		}
	}
	return ""
}

// ServiceForDevice scans -listallhardwareports output and returns the
// hardware port name that encloses the given device, or "".
func ServiceForDevice(listing, device string) string {
	current := ""
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := hardwarePortRe.FindStringSubmatch(line); m != nil {
			current = strings.TrimSpace(m[1])
			continue
		}
		if m := deviceRe.FindStringSubmatch(line); m != nil && m[1] == device && current != "" {
			return current
		}
	}
	return ""
}

// CandidateServices filters -listallnetworkservices output down to enabled,
// non-virtual services, in listing order.
func CandidateServices(listing string) []string {
	var services []string
	scanner := bufio.NewScanner(strings.NewReader(listing))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "An asterisk") {
			continue
		}
		service := strings.TrimSpace(line)
		if service == "" || strings.Contains(service, "*") {
			continue
		}
		if isVirtualService(service) {
			continue
		}
		services = append(services, service)
	}
	return services
}

func isVirtualService(service string) bool {
	lower := strings.ToLower(service)
	for _, word := range skippedServiceWords {
		if strings.Contains(lower, word) {
			return true
		}
	}
	return false
}
