package anomaly

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"votechain/internal/anomaly/metrics"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func TestIsBursting_Threshold(t *testing.T) {
	tests := []struct {
		name  string
		votes int
		want  bool
	}{
		{name: "four votes", votes: 4, want: false},
		{name: "five votes", votes: 5, want: true},
		{name: "six votes", votes: 6, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := New()
			for i := range tt.votes {
				d.Observe("234", t0.Add(time.Duration(i)*10*time.Second))
			}
			now := t0.Add(59 * time.Second)
			assert.Equal(t, tt.want, d.IsBursting("234", now))
		})
	}
}

func TestIsBursting_WindowEvictsOldEvents(t *testing.T) {
	d := New()
	for i := range 5 {
		d.Observe("234", t0.Add(time.Duration(i)*time.Second))
	}
	assert.True(t, d.IsBursting("234", t0.Add(30*time.Second)))

	// t0 is exactly at the window edge and still counts.
	assert.True(t, d.IsBursting("234", t0.Add(60*time.Second)))
	assert.False(t, d.IsBursting("234", t0.Add(61*time.Second)))
	assert.Equal(t, 0, d.Count("234", t0.Add(5*time.Minute)))
}

func TestIsBursting_PerDistrict(t *testing.T) {
	d := New()
	for i := range 5 {
		d.Observe("234", t0.Add(time.Duration(i)*time.Second))
	}
	assert.True(t, d.IsBursting("234", t0.Add(10*time.Second)))
	assert.False(t, d.IsBursting("235", t0.Add(10*time.Second)))
}

func TestOptions(t *testing.T) {
	d := New(WithWindow(10*time.Second), WithThreshold(2))
	assert.False(t, d.ObserveAndCheck("1", t0))
	assert.True(t, d.ObserveAndCheck("1", t0.Add(5*time.Second)))
	assert.False(t, d.ObserveAndCheck("1", t0.Add(20*time.Second)))
}

func TestObserve_Concurrent(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			d.Observe("234", t0)
		})
	}
	wg.Wait()
	assert.Equal(t, 100, d.Count("234", t0))
}

func TestWithMetrics_SharedAcrossDetectors(t *testing.T) {
	m := &metrics.Metrics{Bursts: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_voting_bursts_total",
	}, []string{"district_id"})}

	a := New(WithThreshold(1), WithMetrics(m))
	b := New(WithThreshold(1), WithMetrics(m))
	assert.True(t, a.ObserveAndCheck("234", t0))
	assert.True(t, b.ObserveAndCheck("234", t0))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Bursts.WithLabelValues("234")))

	assert.True(t, New(WithThreshold(1), WithMetrics(nil)).ObserveAndCheck("234", t0))
}
