// feedpoll — an adaptive polling daemon for the Beam social API.
//
// Architecture:
//
//	main.go              — entry point: loads config, starts runner, waits for SIGINT/SIGTERM
//	feed/coordinator.go  — facade: records poll outcomes, advises intervals and waits
//	feed/poller.go       — one GET per poll against the public or watchlist endpoint
//	feed/ratelimit.go    — server quota bookkeeping from x-ratelimit-* / retry-after headers
//	feed/backoff.go      — multiplicative interval scaling, doubling on failure, reset on success
//	runner/runner.go     — one scheduling loop per feed, cursor advance + persistence
//	store/store.go       — atomic JSON file persistence for per-feed cursors
//	analytics/tracker.go — fire-and-forget poll telemetry
//	api/                 — local status dashboard (snapshot + WebSocket event stream)
//
// The cadence discipline: both feeds share one rate-limit tracker and one
// backoff multiplier (the server enforces a combined quota). Any failure
// or 429 doubles the multiplier up to a ceiling; one success snaps it back
// to 1. A server-declared retry-after always wins the next wait.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/beamdotfun/feedpoll/internal/analytics"
	"github.com/beamdotfun/feedpoll/internal/api"
	"github.com/beamdotfun/feedpoll/internal/config"
	"github.com/beamdotfun/feedpoll/internal/feed"
	"github.com/beamdotfun/feedpoll/internal/runner"
	"github.com/beamdotfun/feedpoll/internal/store"
)

func main() {
	// Load config
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("BEAM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	cursors, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open cursor store", "error", err)
		os.Exit(1)
	}

	coord := feed.NewCoordinator(*cfg, feed.StaticToken(cfg.API.AuthToken), logger)
	tracker := analytics.New(cfg.Analytics, logger)
	run := runner.New(*cfg, coord, cursors, tracker, logger)

	if err := run.Start(); err != nil {
		logger.Error("failed to start runner", "error", err)
		os.Exit(1)
	}

	// Start status dashboard if enabled
	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, run, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("status server failed", "error", err)
			}
		}()
		logger.Info("status dashboard started", "url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port))
	}

	logger.Info("feedpoll started",
		"base_url", cfg.API.BaseURL,
		"base_interval", cfg.Poll.BaseInterval,
		"watchlist_auth", cfg.API.AuthToken != "",
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop status server", "error", err)
		}
	}

	run.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
