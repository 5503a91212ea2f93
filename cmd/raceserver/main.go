// Command raceserver runs the authoritative race server. Grounded on the
// teacher's main.go: flag-based configuration, context.WithCancel plus
// os/signal for graceful shutdown, and background goroutines for periodic
// maintenance (here, the metrics logger in place of the teacher's
// mute-expiry/store-optimize tickers).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"

	"raceserver/internal/catalog"
	"raceserver/internal/config"
	"raceserver/internal/healthsrv"
	"raceserver/internal/lobby"
	"raceserver/internal/metrics"
	"raceserver/internal/registry"
	"raceserver/internal/server"
	"raceserver/internal/transport"
)

// Version is the server's reported version. Set at build time via -ldflags.
var Version = "0.1.0-dev"

func main() {
	if len(os.Args) > 1 {
		if runCLI(os.Args[1:]) {
			return
		}
	}

	configPath := flag.String("config", "./server.toml", "path to the TOML configuration file")
	logLevel := flag.String("log-level", "info", "trace|debug|info|warn|error")
	replayDir := flag.String("replay-dir", "./replays", "directory finished sessions' replays are written to")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "log-level" {
			level = *logLevel
		}
	})
	configureLogging(level, cfg.Logging.ConsoleEnabled)

	cat, err := catalog.Load(cfg.Content.CarsDir, cfg.Content.TracksDir)
	if err != nil {
		slog.Error("catalog load failed", "err", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "cars", len(cat.Cars), "tracks", len(cat.Tracks))

	reg := registry.New()
	met := metrics.New()
	lob := lobby.New()
	tr := transport.New(cfg.Network, reg, met)
	tr.SetSessionMembership(func(playerID uuid.UUID, sessionID string) bool {
		sid, err := uuid.Parse(sessionID)
		if err != nil {
			return false
		}
		current, ok := lob.CurrentSession(playerID)
		return ok && current == sid
	})

	loop := server.New(cfg, reg, tr, lob, cat, met, *replayDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	if err := tr.Start(ctx); err != nil {
		slog.Error("transport start failed", "err", err)
		os.Exit(1)
	}

	go met.Run(ctx, 5*time.Second)

	if cfg.Network.HealthBind != "" {
		hs := healthsrv.New(loop)
		go func() {
			if err := hs.Run(ctx, cfg.Network.HealthBind); err != nil {
				slog.Error("health server failed", "err", err)
			}
		}()
	}

	if err := loop.Run(ctx); err != nil {
		slog.Error("server loop failed", "err", err)
		os.Exit(1)
	}

	tr.Shutdown(context.Background())
}

func configureLogging(level string, consoleEnabled bool) {
	var lvl slog.Level
	switch level {
	case "trace", "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if consoleEnabled {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
