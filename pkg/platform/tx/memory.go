package tx

import (
	"context"
	"sync"
	"time"
)

// MemoryRunner serializes units of work behind one lock and undoes the
// registered side effects of a failed unit.
type MemoryRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewMemoryRunner returns a runner for in-memory stores.
func NewMemoryRunner(timeout time.Duration) *MemoryRunner {
	return &MemoryRunner{timeout: timeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InUnit(ctx) {
		return fn(ctx)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := cancelled(ctx); err != nil {
		return err
	}

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			panic(p)
		}
		if err != nil {
			j.rollback()
		}
	}()
	return fn(context.WithValue(ctx, journalKey{}, j))
}
