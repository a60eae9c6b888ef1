package broadcast

import (
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/storepulse/internal/adapter/metrics"
	"github.com/pscheid92/storepulse/internal/domain"
)

// ConnectionSource lists the connections an event is delivered to.
type ConnectionSource interface {
	Connections() []*domain.Connection
}

type Dispatcher struct {
	source  ConnectionSource
	clock   clockwork.Clock
	metrics *metrics.BroadcastMetrics
}

func NewDispatcher(source ConnectionSource, clock clockwork.Clock, m *metrics.BroadcastMetrics) *Dispatcher {
	return &Dispatcher{source: source, clock: clock, metrics: m}
}

// Publish delivers the event to every connection registered at the time of the
// call and returns how many accepted it.
func (d *Dispatcher) Publish(event string, payload any) (int, error) {
	data, err := domain.Encode(event, payload)
	if err != nil {
		return 0, fmt.Errorf("publish %s: %w", event, err)
	}

	start := d.clock.Now()
	connections := d.source.Connections()

	delivered := 0
	for _, conn := range connections {
		if err := conn.Send(data); err != nil {
			d.metrics.DeliveryFailures.WithLabelValues(event).Inc()
			slog.Warn("Delivery failed, skipping connection", "event", event, "connection_id", conn.ID, "error", err)
			continue
		}
		delivered++
	}

	d.metrics.Published.WithLabelValues(event).Inc()
	d.metrics.Deliveries.Add(float64(delivered))
	d.metrics.FanoutDuration.Observe(d.clock.Since(start).Seconds())

	slog.Debug("Event published", "event", event, "delivered", delivered, "connections", len(connections))
	return delivered, nil
}
