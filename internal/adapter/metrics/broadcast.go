package metrics

import "github.com/prometheus/client_golang/prometheus"

// BroadcastMetrics tracks event fan-out.
type BroadcastMetrics struct {
	Published        *prometheus.CounterVec
	Deliveries       prometheus.Counter
	DeliveryFailures *prometheus.CounterVec
	FanoutDuration   prometheus.Histogram
}

// NewBroadcastMetrics creates and registers broadcast metrics on the given registry.
func NewBroadcastMetrics(reg prometheus.Registerer) *BroadcastMetrics {
	m := &BroadcastMetrics{
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "events_published_total",
			Help:      "Total number of events published, by event name.",
		}, []string{"event"}),
		Deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "deliveries_total",
			Help:      "Total number of frames queued to connections.",
		}),
		DeliveryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "delivery_failures_total",
			Help:      "Total number of skipped deliveries, by event name.",
		}, []string{"event"}),
		FanoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "broadcast",
			Name:      "fanout_duration_seconds",
			Help:      "Time spent queuing one event to every connection.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}

	reg.MustRegister(m.Published, m.Deliveries, m.DeliveryFailures, m.FanoutDuration)
	return m
}
