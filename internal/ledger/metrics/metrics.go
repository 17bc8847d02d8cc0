package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vote ledger.
type Metrics struct {
	BlocksAppended    prometheus.Counter
	ChainLength       prometheus.Gauge
	AppendDuration    prometheus.Histogram
	ValidateDuration  prometheus.Histogram
	IntegrityFailures prometheus.Counter
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		BlocksAppended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_ledger_blocks_appended_total",
			Help: "Total number of vote blocks appended",
		}),
		ChainLength: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "votechain_ledger_chain_length",
			Help: "Number of blocks including genesis, as of the last append or validation",
		}),
		AppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_ledger_append_duration_seconds",
			Help:    "Duration of the serialized read-latest-then-insert section",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ValidateDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_ledger_validate_duration_seconds",
			Help:    "Duration of a full chain validation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
		IntegrityFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_ledger_integrity_failures_total",
			Help: "Chain validations that found a broken link or hash",
		}),
	}
}

func (m *Metrics) ObserveAppend(start time.Time, length int64) {
	if m == nil {
		return
	}
	m.BlocksAppended.Inc()
	m.ChainLength.Set(float64(length))
	m.AppendDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveValidate(start time.Time, length int, valid bool) {
	if m == nil {
		return
	}
	m.ValidateDuration.Observe(time.Since(start).Seconds())
	m.ChainLength.Set(float64(length))
	if !valid {
		m.IntegrityFailures.Inc()
	}
}
