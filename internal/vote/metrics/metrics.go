package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ballot casting.
type Metrics struct {
	Ballots         *prometheus.CounterVec
	FraudSuspicions *prometheus.CounterVec
	CastDuration    prometheus.Histogram
	CommitDuration  prometheus.Histogram
}

// New creates a new Metrics instance with all vote metrics registered.
func New() *Metrics {
	return &Metrics{
		Ballots: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_ballots_total",
			Help: "CastVote attempts by outcome",
		}, []string{"outcome"}),
		FraudSuspicions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_fraud_suspicions_total",
			Help: "Fraud suspicion events raised while casting",
		}, []string{"reason"}),
		CastDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_cast_duration_seconds",
			Help:    "End-to-end duration of CastVote",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		CommitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_commit_duration_seconds",
			Help:    "Duration of the mark-voted plus append unit of work",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncBallot records a CastVote outcome, "ok" or a domain error code.
func (m *Metrics) IncBallot(outcome string) {
	if m == nil {
		return
	}
	m.Ballots.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncFraudSuspicion(reason string) {
	if m == nil {
		return
	}
	m.FraudSuspicions.WithLabelValues(reason).Inc()
}

// ObserveCast records the duration of a CastVote call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCast(start time.Time) {
	if m == nil {
		return
	}
	m.CastDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveCommit(start time.Time) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(time.Since(start).Seconds())
}
