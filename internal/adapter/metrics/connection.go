package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConnectionMetrics tracks the WebSocket connection population.
type ConnectionMetrics struct {
	Active      prometheus.Gauge
	Connects    prometheus.Counter
	Disconnects *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	SendErrors  *prometheus.CounterVec
}

// NewConnectionMetrics creates and registers connection metrics on the given registry.
func NewConnectionMetrics(reg prometheus.Registerer) *ConnectionMetrics {
	m := &ConnectionMetrics{
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "active",
			Help:      "Number of registered WebSocket connections.",
		}),
		Connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "connects_total",
			Help:      "Total number of registered connections.",
		}),
		Disconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "disconnects_total",
			Help:      "Total number of deregistered connections, by reason.",
		}, []string{"reason"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "rejected_total",
			Help:      "Total number of connection attempts rejected by limits, by reason.",
		}, []string{"reason"}),
		SendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "connections",
			Name:      "send_errors_total",
			Help:      "Total number of frames that could not be queued or written, by cause.",
		}, []string{"cause"}),
	}

	reg.MustRegister(m.Active, m.Connects, m.Disconnects, m.Rejected, m.SendErrors)
	return m
}
