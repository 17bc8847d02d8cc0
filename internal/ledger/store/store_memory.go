// Package store persists ledger blocks.
package store

import (
	"context"
	"sync"

	"votechain/internal/ledger"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/platform/tx"
)

// InMemory holds the chain in a slice guarded by one mutex, which is also
// the append critical section.
type InMemory struct {
	mu     sync.RWMutex
	blocks []*ledger.Block
	byHash map[string]int64
	byRef  map[string]int64
}

// NewInMemory creates an empty chain.
func NewInMemory() *InMemory {
	return &InMemory{
		byHash: make(map[string]int64),
		byRef:  make(map[string]int64),
	}
}

func (s *InMemory) AppendNext(ctx context.Context, build ledger.BuildFunc) (*ledger.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var prev *ledger.Block
	if n := len(s.blocks); n > 0 {
		prev = s.blocks[n-1].Clone()
	}
	b, err := build(prev)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return prev, nil
	}
	if _, ok := s.byHash[b.Hash]; ok {
		return nil, sentinel.ErrConflict
	}
	if b.VoterReference != "" {
		if _, ok := s.byRef[b.VoterReference]; ok {
			return nil, sentinel.ErrConflict
		}
		s.byRef[b.VoterReference] = b.Index
	}
	s.byHash[b.Hash] = b.Index
	s.blocks = append(s.blocks, b.Clone())

	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		n := len(s.blocks)
		if n == 0 || s.blocks[n-1].Hash != b.Hash {
			return
		}
		s.blocks = s.blocks[:n-1]
		delete(s.byHash, b.Hash)
		if b.VoterReference != "" {
			delete(s.byRef, b.VoterReference)
		}
	})
	return b, nil
}

func (s *InMemory) Latest(_ context.Context) (*ledger.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.blocks) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.blocks[len(s.blocks)-1].Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]ledger.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Block, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = *b.Clone()
	}
	return out, nil
}

func (s *InMemory) FindByIndex(_ context.Context, index int64) (*ledger.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= int64(len(s.blocks)) {
		return nil, sentinel.ErrNotFound
	}
	return s.blocks[index].Clone(), nil
}

func (s *InMemory) FindByHash(ctx context.Context, hash string) (*ledger.Block, error) {
	s.mu.RLock()
	index, ok := s.byHash[hash]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByIndex(ctx, index)
}

func (s *InMemory) FindByVoterReference(ctx context.Context, ref string) (*ledger.Block, error) {
	s.mu.RLock()
	index, ok := s.byRef[ref]
	s.mu.RUnlock()
	if !ok || ref == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByIndex(ctx, index)
}
