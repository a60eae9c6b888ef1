package metrics

import "github.com/prometheus/client_golang/prometheus"

// LivenessMetrics tracks application-level probing.
type LivenessMetrics struct {
	Tracked         prometheus.Gauge
	ProbesSent      prometheus.Counter
	ProbeFailures   prometheus.Counter
	Acknowledgments prometheus.Counter
	Evictions       prometheus.Counter
}

// NewLivenessMetrics creates and registers liveness metrics on the given registry.
func NewLivenessMetrics(reg prometheus.Registerer) *LivenessMetrics {
	m := &LivenessMetrics{
		Tracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "tracked_connections",
			Help:      "Number of connections with an active probe task.",
		}),
		ProbesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "probes_sent_total",
			Help:      "Total number of liveness probes queued.",
		}),
		ProbeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "probe_failures_total",
			Help:      "Total number of liveness probes that could not be queued.",
		}),
		Acknowledgments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "acknowledgments_total",
			Help:      "Total number of probe responses received.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "liveness",
			Name:      "evictions_total",
			Help:      "Total number of connections evicted for missing probes.",
		}),
	}

	reg.MustRegister(m.Tracked, m.ProbesSent, m.ProbeFailures, m.Acknowledgments, m.Evictions)
	return m
}
