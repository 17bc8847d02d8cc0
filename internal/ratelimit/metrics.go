package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_ratelimit_rejected_total",
			Help: "Requests rejected by the per-IP rate limiter",
		}, []string{"path"}),
	}
}

func (m *Metrics) observeRejected(path string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(path).Inc()
}
