// Package store persists the election switch and roster.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"votechain/internal/election"
)

// InMemory holds the election state in process.
type InMemory struct {
	mu         sync.RWMutex
	state      election.State
	candidates map[string]election.Candidate
}

// NewInMemory creates a store whose election starts in the given state.
func NewInMemory(active bool) *InMemory {
	return &InMemory{
		state:      election.State{Active: active, UpdatedAt: time.Now().UTC()},
		candidates: make(map[string]election.Candidate),
	}
}

func (s *InMemory) State(_ context.Context) (election.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *InMemory) SetActive(_ context.Context, active bool, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = election.State{Active: active, UpdatedAt: at, UpdatedBy: by}
	return nil
}

func (s *InMemory) ListCandidates(_ context.Context) ([]election.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]election.Candidate, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) PutCandidate(_ context.Context, c election.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates[c.ID] = c
	return nil
}
