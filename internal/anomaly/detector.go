// Package anomaly flags bursts of votes within a district.
package anomaly

import (
	"sync"
	"time"

	"votechain/internal/anomaly/metrics"
)

const (
	DefaultWindow    = 60 * time.Second
	DefaultThreshold = 5
)

// Detector keeps a sliding window of vote timestamps per district. Entries
// leave the window by eviction on access, never by periodic reset.
type Detector struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	districts map[string]*slidingWindow
	metrics   *metrics.Metrics
}

// slidingWindow holds timestamps in arrival order.
type slidingWindow struct {
	timestamps []time.Time
}

type Option func(*Detector)

// WithWindow sets the trailing interval.
func WithWindow(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.window = d
		}
	}
}

// WithThreshold sets the event count at which a district is bursting.
func WithThreshold(n int) Option {
	return func(det *Detector) {
		if n > 0 {
			det.threshold = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(det *Detector) {
		det.metrics = m
	}
}

// New returns a Detector with a 60 second window and threshold 5 unless overridden.
func New(opts ...Option) *Detector {
	d := &Detector{
		window:    DefaultWindow,
		threshold: DefaultThreshold,
		districts: make(map[string]*slidingWindow),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe records a vote in district at ts.
func (d *Detector) Observe(district string, ts time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.districts[district]
	if w == nil {
		w = &slidingWindow{}
		d.districts[district] = w
	}
	w.add(ts)
	w.cleanup(ts.Add(-d.window))
}

// IsBursting reports whether district saw at least threshold events with
// timestamps at or after now minus the window.
func (d *Detector) IsBursting(district string, now time.Time) bool {
	return d.Count(district, now) >= d.threshold
}

// Count returns the events for district within the window ending at now.
func (d *Detector) Count(district string, now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.districts[district]
	if w == nil {
		return 0
	}
	cutoff := now.Add(-d.window)
	w.cleanup(cutoff)
	if len(w.timestamps) == 0 {
		delete(d.districts, district)
		return 0
	}
	n := 0
	for _, ts := range w.timestamps {
		if !ts.Before(cutoff) && !ts.After(now) {
			n++
		}
	}
	return n
}

// ObserveAndCheck records a vote and reports whether the district is bursting.
func (d *Detector) ObserveAndCheck(district string, ts time.Time) bool {
	d.Observe(district, ts)
	bursting := d.IsBursting(district, ts)
	if bursting {
		d.metrics.IncBurst(district)
	}
	return bursting
}

// Threshold returns the configured burst threshold.
func (d *Detector) Threshold() int { return d.threshold }

// Window returns the configured window.
func (d *Detector) Window() time.Duration { return d.window }

// add keeps timestamps sorted; out-of-order observations are rare and short.
func (w *slidingWindow) add(ts time.Time) {
	i := len(w.timestamps)
	for i > 0 && w.timestamps[i-1].After(ts) {
		i--
	}
	w.timestamps = append(w.timestamps, time.Time{})
	copy(w.timestamps[i+1:], w.timestamps[i:])
	w.timestamps[i] = ts
}

// cleanup removes timestamps strictly older than cutoff.
func (w *slidingWindow) cleanup(cutoff time.Time) {
	i := 0
	for ; i < len(w.timestamps); i++ {
		if !w.timestamps[i].Before(cutoff) {
			break
		}
	}
	w.timestamps = w.timestamps[i:]
}
