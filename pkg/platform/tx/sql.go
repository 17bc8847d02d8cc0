package tx

import (
	"context"
	"database/sql"
	"time"
)

// SQLRunner opens a database transaction per unit of work and exposes it to
// stores through the context.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
	opts    *sql.TxOptions
}

// NewSQLRunner returns a runner over db. opts may be nil.
func NewSQLRunner(db *sql.DB, timeout time.Duration, opts *sql.TxOptions) *SQLRunner {
	return &SQLRunner{db: db, timeout: timeout, opts: opts}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	if err := cancelled(ctx); err != nil {
		return err
	}

	ctx, cancel := withDeadline(ctx, r.timeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, r.opts)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit()
}
