// Package config loads server.toml into a typed Config, matching the
// [server]/[network]/[content]/[logging] tables in the external interface
// contract. Missing optional fields fall back to documented defaults so a
// minimal file is valid.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	TickRateHz            int `toml:"tick_rate_hz"`
	MaxSessions           int `toml:"max_sessions"`
	SessionTimeoutSeconds int `toml:"session_timeout_seconds"`
}

type NetworkConfig struct {
	TCPBind             string `toml:"tcp_bind"`
	UDPBind             string `toml:"udp_bind"`
	HealthBind          string `toml:"health_bind"`
	TLSCertPath         string `toml:"tls_cert_path"`
	TLSKeyPath          string `toml:"tls_key_path"`
	RequireTLS          bool   `toml:"require_tls"`
	HeartbeatIntervalMS int    `toml:"heartbeat_interval_ms"`
	HeartbeatTimeoutMS  int    `toml:"heartbeat_timeout_ms"`
}

type ContentConfig struct {
	CarsDir   string `toml:"cars_dir"`
	TracksDir string `toml:"tracks_dir"`
}

type LoggingConfig struct {
	Level           string `toml:"level"`
	ConsoleEnabled  bool   `toml:"console_enabled"`
}

// Config is the fully decoded, defaulted configuration. It is read once at
// startup and shared by reference thereafter; no update path exists.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Network NetworkConfig `toml:"network"`
	Content ContentConfig `toml:"content"`
	Logging LoggingConfig `toml:"logging"`
}

// Default returns the configuration a server runs with if no file is
// supplied at all.
func Default() Config {
	return Config{
		Server: ServerConfig{
			TickRateHz:            240,
			MaxSessions:           64,
			SessionTimeoutSeconds: 30,
		},
		Network: NetworkConfig{
			TCPBind:             "0.0.0.0:7700",
			UDPBind:             "0.0.0.0:7701",
			HealthBind:          "0.0.0.0:7702",
			RequireTLS:          false,
			HeartbeatIntervalMS: 1000,
			HeartbeatTimeoutMS:  10000,
		},
		Content: ContentConfig{
			CarsDir:   "./content/cars",
			TracksDir: "./content/tracks",
		},
		Logging: LoggingConfig{
			Level:          "info",
			ConsoleEnabled: true,
		},
	}
}

// Load decodes path on top of Default(), so a file only needs to specify
// the fields it wants to override.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if cfg.Server.TickRateHz <= 0 {
		return Config{}, fmt.Errorf("config: tick_rate_hz must be positive, got %d", cfg.Server.TickRateHz)
	}
	return cfg, nil
}

// TickInterval is the fixed simulation timestep derived from TickRateHz.
func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRateHz)
}

// HeartbeatInterval/HeartbeatTimeout convert the millisecond config fields
// to time.Duration for use by the transport layer.
func (c Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Network.HeartbeatIntervalMS) * time.Millisecond
}

func (c Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Network.HeartbeatTimeoutMS) * time.Millisecond
}
