package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.TickRateHz != 240 {
		t.Errorf("got tick rate %d, want 240", cfg.Server.TickRateHz)
	}
}

func TestLoadOverridesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	body := `
[network]
tcp_bind = "127.0.0.1:9000"
require_tls = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Network.TCPBind != "127.0.0.1:9000" {
		t.Errorf("got tcp_bind %q, want 127.0.0.1:9000", cfg.Network.TCPBind)
	}
	if !cfg.Network.RequireTLS {
		t.Error("expected require_tls to be true")
	}
	if cfg.Server.TickRateHz != 240 {
		t.Errorf("expected untouched tick_rate_hz to keep default, got %d", cfg.Server.TickRateHz)
	}
}

func TestLoadRejectsNonPositiveTickRate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	if err := os.WriteFile(path, []byte("[server]\ntick_rate_hz = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-positive tick_rate_hz")
	}
}
