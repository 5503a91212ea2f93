package transport

import (
	"context"
	"net"
	"testing"

	"raceserver/internal/config"
	"raceserver/internal/metrics"
	"raceserver/internal/registry"
)

func testNetworkConfig() config.NetworkConfig {
	return config.NetworkConfig{
		TCPBind: "127.0.0.1:0",
		UDPBind: "127.0.0.1:0",
	}
}

// TestStartFallsBackToPlaintextWhenCertMissing covers spec.md's require_tls
// contract: a configured-but-unreadable cert path with require_tls=false
// must not fail startup and must not silently upgrade to a self-signed
// certificate either — the listener should come up in plaintext.
func TestStartFallsBackToPlaintextWhenCertMissing(t *testing.T) {
	cfg := testNetworkConfig()
	cfg.TLSCertPath = "/nonexistent/cert.pem"
	cfg.TLSKeyPath = "/nonexistent/key.pem"
	cfg.RequireTLS = false

	l := New(cfg, registry.New(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start returned error with require_tls=false: %v", err)
	}
	defer l.tcpListener.Close()

	// tls.NewListener wraps net.Listener in an unexported type; a plain
	// *net.TCPListener surviving Start() means it was never wrapped, i.e.
	// tlsConfig stayed nil and the socket is plaintext.
	if _, ok := l.tcpListener.(*net.TCPListener); !ok {
		t.Fatalf("expected a plain *net.TCPListener, got %T", l.tcpListener)
	}
}

// TestStartFailsWhenRequireTLSAndCertMissing covers the opposite half of
// the same contract: require_tls=true must fail startup outright rather
// than fall back to plaintext or a self-signed cert.
func TestStartFailsWhenRequireTLSAndCertMissing(t *testing.T) {
	cfg := testNetworkConfig()
	cfg.TLSCertPath = "/nonexistent/cert.pem"
	cfg.TLSKeyPath = "/nonexistent/key.pem"
	cfg.RequireTLS = true

	l := New(cfg, registry.New(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Start(ctx); err == nil {
		t.Fatal("expected Start to fail when require_tls=true and cert cannot be loaded")
	}
}

// TestStartGeneratesSelfSignedWhenRequireTLSAndNoCertConfigured covers the
// require_tls=true, no cert path case: a self-signed certificate should be
// generated so the server still runs under TLS.
func TestStartGeneratesSelfSignedWhenRequireTLSAndNoCertConfigured(t *testing.T) {
	cfg := testNetworkConfig()
	cfg.RequireTLS = true

	l := New(cfg, registry.New(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer l.tcpListener.Close()
}
