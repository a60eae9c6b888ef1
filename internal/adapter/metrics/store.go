package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics tracks catalog mutations and sizes.
type StoreMetrics struct {
	Mutations *prometheus.CounterVec
	Entities  *prometheus.GaugeVec
}

// NewStoreMetrics creates and registers store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "mutations_total",
			Help:      "Total number of catalog mutations, by collection and operation.",
		}, []string{"collection", "operation"}),
		Entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "entities",
			Help:      "Number of entities held, by collection.",
		}, []string{"collection"}),
	}

	reg.MustRegister(m.Mutations, m.Entities)
	return m
}
