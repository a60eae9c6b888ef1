package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

type StatsSource interface {
	Stats() Stats
}

// Reporter logs hub statistics on a fixed interval.
type Reporter struct {
	source   StatsSource
	clock    clockwork.Clock
	interval time.Duration
	logger   *slog.Logger
}

func NewReporter(source StatsSource, clock clockwork.Clock, interval time.Duration, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{source: source, clock: clock, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled. A non-positive interval disables reporting.
func (r *Reporter) Run(ctx context.Context) {
	if r.interval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	var last Stats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			last = r.report(ctx, last)
		}
	}
}

func (r *Reporter) report(ctx context.Context, last Stats) Stats {
	stats := r.source.Stats()
	if stats == last {
		return last
	}

	r.logger.InfoContext(ctx, "Hub stats",
		"active_connections", stats.ActiveConnections,
		"connection_events", stats.TotalConnectionEvents,
		"products", stats.ProductCount,
		"orders", stats.OrderCount)
	return stats
}
