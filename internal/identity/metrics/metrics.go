package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for voter enrolment and verification.
type Metrics struct {
	Registrations        *prometheus.CounterVec
	VerificationFailures prometheus.Counter
	RegisterDuration     prometheus.Histogram
	DescriptorScanSize   prometheus.Gauge
}

// New creates a new Metrics instance with all identity metrics registered.
func New() *Metrics {
	return &Metrics{
		Registrations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "votechain_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		VerificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "votechain_biometric_verification_failures_total",
			Help: "Biometric verifications that did not match",
		}),
		RegisterDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "votechain_register_duration_seconds",
			Help:    "Duration of Register including the duplicate descriptor scan",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		DescriptorScanSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "votechain_descriptor_scan_size",
			Help: "Number of enrolled descriptor sets scanned by the last registration",
		}),
	}
}

// IncRegistration records a registration outcome, e.g. "ok" or a domain error code.
func (m *Metrics) IncRegistration(outcome string) {
	if m == nil {
		return
	}
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncVerificationFailure() {
	if m == nil {
		return
	}
	m.VerificationFailures.Inc()
}

// ObserveRegister records the duration of a Register call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveRegister(start time.Time) {
	if m == nil {
		return
	}
	m.RegisterDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetScanSize(n int) {
	if m == nil {
		return
	}
	m.DescriptorScanSize.Set(float64(n))
}
