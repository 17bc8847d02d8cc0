package store

import (
	"context"
	"sync"
	"time"

	"votechain/internal/ratelimit"
)

// InMemory keeps a sliding window of admission timestamps per key. It is
// process-local; use Redis when several replicas share one limit.
type InMemory struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	timestamps []time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{windows: make(map[string]*slidingWindow)}
}

func (s *InMemory) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (ratelimit.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{}
		s.windows[key] = sw
	}
	sw.evict(now.Add(-window))

	if len(sw.timestamps) >= limit {
		return ratelimit.Result{
			Allowed: false,
			Limit:   limit,
			ResetAt: sw.timestamps[0].Add(window),
		}, nil
	}
	sw.timestamps = append(sw.timestamps, now)
	return ratelimit.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.timestamps),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Sweep drops keys whose windows have emptied.
func (s *InMemory) Sweep(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for key, sw := range s.windows {
		sw.evict(now.Add(-window))
		if len(sw.timestamps) == 0 {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on every tick until ctx is cancelled.
func (s *InMemory) StartSweeper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now, window)
		}
	}
}

func (sw *slidingWindow) evict(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}
