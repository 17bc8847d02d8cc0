package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "votechain/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for audit publishing.
type Metrics struct {
	Emitted         *prometheus.CounterVec
	Dropped         prometheus.Counter
	PersistFailures prometheus.Counter
	SinkFailures    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		Emitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_audit_events_total",
			Help: "Audit events persisted, by category",
		}, []string{"category"}),
		Dropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_audit_events_dropped_total",
			Help: "Audit events dropped because the async buffer was full",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_audit_persist_failures_total",
			Help: "Audit events the store failed to persist",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_audit_sink_failures_total",
			Help: "Security events the external sink rejected",
		}),
	}
}

func (m *Metrics) IncEmitted(category audit.EventCategory) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(string(category)).Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}

func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.PersistFailures.Inc()
}

func (m *Metrics) IncSinkFailures() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}
