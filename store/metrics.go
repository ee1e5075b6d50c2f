package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records repository activity.
type Metrics struct {
	operations *prometheus.CounterVec
	cascade    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "arbor",
			Name:      "repository_operations_total",
			Help:      "Repository operations by entity type, operation and result.",
		}, []string{"entity", "operation", "result"}),
		cascade: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "arbor",
			Name:      "cascade_marked_entities",
			Help:      "Entities marked deleted by one soft-delete call.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"entity"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.cascade)
	}
	return m
}

func (m *Metrics) observeOp(entity, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(entity, op, result).Inc()
}

func (m *Metrics) observeCascade(entity string, marked int) {
	if m == nil {
		return
	}
	m.cascade.WithLabelValues(entity).Observe(float64(marked))
}
