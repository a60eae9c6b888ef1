package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/adapter/httpserver"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/app"
	"github.com/pscheid92/storepulse/internal/broadcast"
	"github.com/pscheid92/storepulse/internal/eventlog"
	"github.com/pscheid92/storepulse/internal/liveness"
	"github.com/pscheid92/storepulse/internal/platform/config"
	"github.com/pscheid92/storepulse/internal/platform/logging"
	"github.com/pscheid92/storepulse/internal/platform/version"
	"github.com/pscheid92/storepulse/internal/registry"
	"github.com/pscheid92/storepulse/internal/store"
	"golang.org/x/sync/errgroup"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// runUntilSignal serves until SIGINT/SIGTERM, then drains HTTP and closes
// every live connection with the shutdown reason.
func runUntilSignal(cfg *config.Config, srv *httpserver.Server, hub *app.Hub, reporter *app.Reporter) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		reporter.Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutdown signal received, cleaning up...")

		// live sockets are hijacked, so echo does not wait for them
		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()
	connMetrics := metrics.NewConnectionMetrics(reg)

	catalog := store.NewCatalog(clock)
	events := eventlog.New()
	monitor := liveness.NewMonitor(clock, cfg.ProbeInterval, cfg.ProbeThreshold, metrics.NewLivenessMetrics(reg))
	connections := registry.New(clock, events, monitor, catalog, connMetrics)
	dispatcher := broadcast.NewDispatcher(connections, clock, metrics.NewBroadcastMetrics(reg))
	hub := app.NewHub(connections, monitor, dispatcher, events, catalog, metrics.NewStoreMetrics(reg))

	reporter := app.NewReporter(hub, clock, cfg.StatsInterval, logger)
	srv := httpserver.NewServer(cfg, hub, clock, reg, connMetrics, nil)

	if err := runUntilSignal(cfg, srv, hub, reporter); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}
