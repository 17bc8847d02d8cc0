// Package tx carries a unit of work through context.
//
// Postgres-backed stores pick up the *sql.Tx placed by SQLRunner. In-memory
// stores register compensating actions with OnRollback, which MemoryRunner
// replays in reverse order when the unit of work fails.
package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "votechain/pkg/domain-errors"
)

// DefaultTimeout bounds a unit of work when the caller set no deadline.
const DefaultTimeout = 5 * time.Second

// Runner executes fn as a single all-or-nothing unit.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ctxKey struct{}
type journalKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type journal struct {
	mu    sync.Mutex
	undos []func()
}

func (j *journal) add(fn func()) {
	j.mu.Lock()
	j.undos = append(j.undos, fn)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	undos := j.undos
	j.undos = nil
	j.mu.Unlock()
	for i := len(undos) - 1; i >= 0; i-- {
		undos[i]()
	}
}

// OnRollback registers fn to run if the enclosing MemoryRunner unit fails.
// Outside a unit of work it is a no-op.
func OnRollback(ctx context.Context, fn func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.add(fn)
	}
}

// InUnit reports whether ctx already belongs to a unit of work.
func InUnit(ctx context.Context) bool {
	if _, ok := From(ctx); ok {
		return true
	}
	_, ok := ctx.Value(journalKey{}).(*journal)
	return ok
}

func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return nil
}
