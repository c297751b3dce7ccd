// Package sandboxtest provides loopback network fixtures for exercising
// gaol.NetworkOutbound end to end: a sandboxed child needs something
// reachable to connect to, and something observing whether the connection
// actually arrived. It is adapted from the teacher's internal/proxy SOCKS5
// server, stripped of domain filtering (a fence concern with no counterpart
// in gaol's allow-list model) down to a bare accept-and-record rule set.
package sandboxtest

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/things-go/go-socks5"
)

// Listener is a loopback TCP listener that records every accepted
// connection's remote address, for tests that need to assert a sandboxed
// process's connect() actually landed.
type Listener struct {
	net.Listener

	mu    sync.Mutex
	conns []string
}

// Listen starts a Listener on an OS-assigned loopback port.
func Listen() (*Listener, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("gaol/sandboxtest: listen: %w", err)
	}
	l := &Listener{Listener: ln}
	go l.accept()
	return l, nil
}

func (l *Listener) accept() {
	for {
		conn, err := l.Listener.Accept()
		if err != nil {
			return
		}
		l.mu.Lock()
		l.conns = append(l.conns, conn.RemoteAddr().String())
		l.mu.Unlock()
		_ = conn.Close()
	}
}

// Port returns the port the listener is bound to.
func (l *Listener) Port() uint16 {
	return uint16(l.Listener.Addr().(*net.TCPAddr).Port) //nolint:forcetypeassert // Listen always produces a *net.TCPAddr
}

// ConnectionCount reports how many connections have been accepted so far.
func (l *Listener) ConnectionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

// SocksHarness is a permissive loopback SOCKS5 server: every CONNECT
// request is allowed and recorded, never filtered. It proves out a
// sandboxed process's NetworkOutbound grant against a real protocol
// handshake rather than a bare connect().
type SocksHarness struct {
	server   *socks5.Server
	listener net.Listener

	mu   sync.Mutex
	dest []string
}

// StartSocksHarness starts a SocksHarness on an OS-assigned loopback port.
func StartSocksHarness() (*SocksHarness, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("gaol/sandboxtest: listen: %w", err)
	}
	h := &SocksHarness{listener: ln}
	h.server = socks5.NewServer(socks5.WithRule(h))
	go func() { _ = h.server.Serve(h.listener) }()
	return h, nil
}

// Allow implements socks5.RuleSet by recording the destination and
// permitting every request unconditionally.
func (h *SocksHarness) Allow(ctx context.Context, req *socks5.Request) (context.Context, bool) {
	host := req.DestAddr.FQDN
	if host == "" {
		host = req.DestAddr.IP.String()
	}
	h.mu.Lock()
	h.dest = append(h.dest, fmt.Sprintf("%s:%d", host, req.DestAddr.Port))
	h.mu.Unlock()
	return ctx, true
}

// Port returns the port the SOCKS5 harness is listening on.
func (h *SocksHarness) Port() uint16 {
	return uint16(h.listener.Addr().(*net.TCPAddr).Port) //nolint:forcetypeassert // StartSocksHarness always produces a *net.TCPAddr
}

// RequestCount reports how many CONNECT requests have been observed.
func (h *SocksHarness) RequestCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.dest)
}

// Close shuts down the harness's listener.
func (h *SocksHarness) Close() error {
	return h.listener.Close()
}

// Close shuts down the Listener.
func (l *Listener) Close() error {
	return l.Listener.Close()
}
