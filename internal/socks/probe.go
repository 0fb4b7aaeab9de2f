// Package socks checks that a tunnel's local SOCKS5 endpoint actually
// forwards traffic.
package socks

import (
	"context"
	"fmt"
	"net"
	"time"

	"golang.org/x/net/proxy"
)

// Probe opens a connection to target through the SOCKS5 proxy at proxyAddr
// and returns how long the CONNECT took. The connection is closed right away.
func Probe(ctx context.Context, proxyAddr, target string, timeout time.Duration) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer, err := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return 0, fmt.Errorf("failed to create socks dialer: %w", err)
	}
	cd, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return 0, fmt.Errorf("socks dialer does not support contexts")
	}

	start := time.Now()
	conn, err := cd.DialContext(ctx, "tcp", target)
	if err != nil {
		return 0, fmt.Errorf("socks connect to %s via %s: %w", target, proxyAddr, err)
	}
	elapsed := time.Since(start)
	_ = conn.Close()

	return elapsed, nil
}
