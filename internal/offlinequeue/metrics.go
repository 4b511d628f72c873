package offlinequeue

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Offline Queue's Prometheus instruments. A nil *Metrics
// is valid and simply drops observations, so tests and
// callers that don't run a metrics server never have to special-case it.
type Metrics struct {
	drainAttempts *prometheus.CounterVec
	queueSize     prometheus.Gauge
}

// NewMetrics registers the Offline Queue's instruments against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		drainAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evv_sync",
			Subsystem: "offline_queue",
			Name:      "drain_attempts_total",
			Help:      "Count of queued-action drain attempts by outcome.",
		}, []string{"outcome"}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "evv_sync",
			Subsystem: "offline_queue",
			Name:      "size",
			Help:      "Number of actions currently persisted in the offline queue.",
		}),
	}
	reg.MustRegister(m.drainAttempts, m.queueSize)
	return m
}

func (m *Metrics) observeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.drainAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) setQueueSize(n int) {
	if m == nil {
		return
	}
	m.queueSize.Set(float64(n))
}
