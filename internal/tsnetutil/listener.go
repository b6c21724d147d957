// Package tsnetutil opens the web UI listener, either as a plain TCP socket or
// as a node on the operator's tailnet so the feedback page is reachable from
// another machine without SSH port forwarding.
package tsnetutil

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/config"
	"tailscale.com/client/local"
	"tailscale.com/tsnet"
)

// Listener wraps a net.Listener with optional Tailscale resources.
type Listener struct {
	net.Listener

	// TS is the underlying tsnet.Server (nil when Tailscale is disabled).
	TS *tsnet.Server

	// LC is the Tailscale local client (nil when Tailscale is disabled).
	LC *local.Client

	https bool
}

// Close tears down the listener and, if present, the tsnet server.
func (l *Listener) Close() error {
	err := l.Listener.Close()
	if l.TS != nil {
		if tsErr := l.TS.Close(); tsErr != nil && err == nil {
			err = tsErr
		}
	}
	return err
}

// Port returns the bound TCP port.
func (l *Listener) Port() int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, p, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(p)
	return port
}

// TailnetURL returns the URL under which the listener is reachable on the
// tailnet, or "" when Tailscale is disabled.
func (l *Listener) TailnetURL(ctx context.Context) (string, error) {
	if l.LC == nil {
		return "", nil
	}
	st, err := l.LC.StatusWithoutPeers(ctx)
	if err != nil {
		return "", fmt.Errorf("tailscale status: %w", err)
	}
	if st.Self == nil || st.Self.DNSName == "" {
		return "", fmt.Errorf("tailscale node has no DNS name yet")
	}
	host := strings.TrimSuffix(st.Self.DNSName, ".")
	scheme := "http"
	if l.https {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, l.Port()), nil
}

// ListenAddr creates a Listener on the given address, optionally using Tailscale.
// When tsCfg.Enabled is false a plain TCP listener is returned.
func ListenAddr(addr string, tsCfg config.TailscaleConfig) (*Listener, error) {
	if !tsCfg.Enabled {
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("tcp listen on %s: %w", addr, err)
		}
		return &Listener{Listener: ln}, nil
	}

	ts := new(tsnet.Server)
	ts.Hostname = tsCfg.Hostname
	if ts.Hostname == "" {
		ts.Hostname = "mcp-feedback"
	}
	ts.Ephemeral = tsCfg.Ephemeral
	ts.AuthKey = tsCfg.AuthKey
	ts.ControlURL = tsCfg.ControlURL
	if tsCfg.Dir != "" {
		ts.Dir = tsCfg.Dir
	}

	if err := ts.Start(); err != nil {
		return nil, fmt.Errorf("starting tsnet server: %w", err)
	}

	lc, err := ts.LocalClient()
	if err != nil {
		ts.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}

	// tsnet listens on the node's tailnet addresses; only the port is meaningful.
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		ts.Close()
		return nil, fmt.Errorf("parsing listen address %s: %w", addr, err)
	}
	ln, err := ts.Listen("tcp", ":"+port)
	if err != nil {
		ts.Close()
		return nil, fmt.Errorf("tsnet listen on :%s: %w", port, err)
	}

	var netLn net.Listener = ln
	if tsCfg.HTTPS {
		netLn = tls.NewListener(ln, &tls.Config{
			GetCertificate: lc.GetCertificate,
		})
	}

	return &Listener{
		Listener: netLn,
		TS:       ts,
		LC:       lc,
		https:    tsCfg.HTTPS,
	}, nil
}
