package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for burst detection.
type Metrics struct {
	Bursts *prometheus.CounterVec
}

// New creates a new Metrics instance with the burst counter registered.
func New() *Metrics {
	return &Metrics{
		Bursts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_voting_bursts_total",
			Help: "Votes observed while their district exceeded the burst threshold",
		}, []string{"district_id"}),
	}
}

// IncBurst records a vote observed while district was bursting.
func (m *Metrics) IncBurst(district string) {
	if m == nil {
		return
	}
	m.Bursts.WithLabelValues(district).Inc()
}
