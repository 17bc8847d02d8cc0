// Package store holds outstanding challenges and voters' public credentials.
package store

import (
	"context"
	"sync"
	"time"

	"votechain/internal/challenge"
	"votechain/pkg/platform/sentinel"
)

type entry struct {
	c         challenge.Challenge
	expiresAt time.Time
}

// InMemory is a TTL map of outstanding challenges. Expired entries are
// evicted lazily on access and by Sweep.
type InMemory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewInMemory creates an empty challenge store.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]entry), now: time.Now}
}

// NewInMemoryWithClock uses now for expiry decisions.
func NewInMemoryWithClock(now func() time.Time) *InMemory {
	s := NewInMemory()
	s.now = now
	return s
}

func (s *InMemory) Put(_ context.Context, c challenge.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[c.VoterID] = entry{c: c, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *InMemory) Take(_ context.Context, voterID string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[voterID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.entries, voterID)
	if !s.now().Before(e.expiresAt) {
		return nil, sentinel.ErrExpired
	}
	c := e.c
	return &c, nil
}

// Sweep drops expired challenges and returns how many were removed.
func (s *InMemory) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *InMemory) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// InMemoryCredentials keeps credentials keyed by credential id.
type InMemoryCredentials struct {
	mu    sync.RWMutex
	creds map[string]challenge.Credential
}

func NewInMemoryCredentials() *InMemoryCredentials {
	return &InMemoryCredentials{creds: make(map[string]challenge.Credential)}
}

func (s *InMemoryCredentials) ListByVoter(_ context.Context, voterID string) ([]challenge.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []challenge.Credential
	for _, c := range s.creds {
		if c.VoterID == voterID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Put inserts or replaces c, keeping the original creation time.
func (s *InMemoryCredentials) Put(_ context.Context, c challenge.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.creds[c.ID]; ok {
		if prev.VoterID != c.VoterID {
			return sentinel.ErrConflict
		}
		c.CreatedAt = prev.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.creds[c.ID] = c
	return nil
}
