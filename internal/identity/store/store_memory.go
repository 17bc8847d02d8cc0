// Package store persists registered voters and the master directory.
package store

import (
	"context"
	"sync"
	"time"

	"votechain/internal/identity"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/platform/tx"
)

// InMemory keeps identities in maps. It is safe for concurrent use; MarkVoted
// registers an undo with the enclosing tx.MemoryRunner unit.
type InMemory struct {
	mu           sync.RWMutex
	masters      map[identity.VoterID]identity.MasterIdentity
	records      map[identity.VoterID]*identity.Record
	fingerprints map[string]identity.VoterID
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		masters:      make(map[identity.VoterID]identity.MasterIdentity),
		records:      make(map[identity.VoterID]*identity.Record),
		fingerprints: make(map[string]identity.VoterID),
	}
}

// PutMaster inserts or replaces a master directory entry.
func (s *InMemory) PutMaster(_ context.Context, m identity.MasterIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masters[m.VoterID] = m
	return nil
}

func (s *InMemory) FindMaster(_ context.Context, id identity.VoterID) (*identity.MasterIdentity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.masters[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &m, nil
}

func (s *InMemory) FindByVoterID(_ context.Context, id identity.VoterID) (*identity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (s *InMemory) ListDescriptors(_ context.Context) ([]identity.DescriptorSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]identity.DescriptorSet, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, identity.DescriptorSet{
			VoterID:     rec.VoterID,
			Face:        rec.Face,
			Fingerprint: rec.Fingerprint,
		})
	}
	return out, nil
}

// Create inserts rec. It returns sentinel.ErrConflict when the voter id or
// the fingerprint digest is already taken.
func (s *InMemory) Create(_ context.Context, rec *identity.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.VoterID]; ok {
		return sentinel.ErrConflict
	}
	if h := rec.Fingerprint.Hash; h != "" {
		if _, ok := s.fingerprints[h]; ok {
			return sentinel.ErrConflict
		}
		s.fingerprints[h] = rec.VoterID
	}
	s.records[rec.VoterID] = cloneRecord(rec)
	return nil
}

func (s *InMemory) MarkVoted(ctx context.Context, id identity.VoterID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.HasVoted {
		return sentinel.ErrAlreadyUsed
	}
	rec.HasVoted = true
	rec.VotedAt = &at
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rec.HasVoted = false
		rec.VotedAt = nil
	})
	return nil
}

func (s *InMemory) Counts(_ context.Context) (identity.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := identity.Counts{Registered: len(s.records)}
	for _, rec := range s.records {
		if rec.HasVoted {
			c.Voted++
		}
	}
	return c, nil
}

func cloneRecord(rec *identity.Record) *identity.Record {
	out := *rec
	if rec.VotedAt != nil {
		at := *rec.VotedAt
		out.VotedAt = &at
	}
	return &out
}
