package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"votechain/internal/ledger"
	"votechain/internal/platform/postgres"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/platform/tx"
)

// appendLockKey identifies the transaction-scoped advisory lock that
// serializes appends across connections.
const appendLockKey int64 = 0x766f7465

const blockColumns = `block_index, district_id, candidate_id, recorded_at, previous_hash,
	block_hash, biometric_verified, block_data, COALESCE(voter_reference, '')`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

// PostgresStore persists blocks in the ledger_blocks table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) querier(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// AppendNext joins the transaction in ctx, or opens its own, and holds the
// append advisory lock until that transaction ends.
func (s *PostgresStore) AppendNext(ctx context.Context, build ledger.BuildFunc) (*ledger.Block, error) {
	if t, ok := tx.From(ctx); ok {
		return s.appendNext(ctx, t, build)
	}

	t, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer func() {
		_ = t.Rollback()
	}()
	b, err := s.appendNext(ctx, t, build)
	if err != nil {
		return nil, err
	}
	if err := t.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) appendNext(ctx context.Context, q querier, build ledger.BuildFunc) (*ledger.Block, error) {
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("acquire append lock: %w", err)
	}

	prev, err := scanBlock(q.QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM ledger_blocks ORDER BY block_index DESC LIMIT 1`))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		prev = nil
	case err != nil:
		return nil, fmt.Errorf("read chain tip: %w", err)
	}

	b, err := build(prev)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return prev, nil
	}

	var ref sql.NullString
	if b.VoterReference != "" {
		ref = sql.NullString{String: b.VoterReference, Valid: true}
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO ledger_blocks (block_index, district_id, candidate_id, recorded_at, previous_hash,
		                           block_hash, biometric_verified, block_data, voter_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.Index, b.DistrictID, b.CandidateID, b.Timestamp, b.PreviousHash,
		b.Hash, b.BiometricVerified, b.Data, ref)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return nil, sentinel.ErrConflict
		}
		return nil, fmt.Errorf("insert block %d: %w", b.Index, err)
	}
	return b, nil
}

func (s *PostgresStore) Latest(ctx context.Context) (*ledger.Block, error) {
	return s.findOne(ctx, `ORDER BY block_index DESC LIMIT 1`)
}

// List returns the chain in one statement so readers see a single snapshot.
func (s *PostgresStore) List(ctx context.Context) ([]ledger.Block, error) {
	rows, err := s.querier(ctx).QueryContext(ctx,
		`SELECT `+blockColumns+` FROM ledger_blocks ORDER BY block_index`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []ledger.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) FindByIndex(ctx context.Context, index int64) (*ledger.Block, error) {
	return s.findOne(ctx, `WHERE block_index = $1`, index)
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*ledger.Block, error) {
	return s.findOne(ctx, `WHERE block_hash = $1`, hash)
}

func (s *PostgresStore) FindByVoterReference(ctx context.Context, ref string) (*ledger.Block, error) {
	if ref == "" {
		return nil, sentinel.ErrNotFound
	}
	return s.findOne(ctx, `WHERE voter_reference = $1`, ref)
}

func (s *PostgresStore) findOne(ctx context.Context, clause string, args ...any) (*ledger.Block, error) {
	b, err := scanBlock(s.querier(ctx).QueryRowContext(ctx,
		`SELECT `+blockColumns+` FROM ledger_blocks `+clause, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find block: %w", err)
	}
	return b, nil
}

func scanBlock(row scanner) (*ledger.Block, error) {
	var b ledger.Block
	if err := row.Scan(&b.Index, &b.DistrictID, &b.CandidateID, &b.Timestamp, &b.PreviousHash,
		&b.Hash, &b.BiometricVerified, &b.Data, &b.VoterReference); err != nil {
		return nil, err
	}
	b.Timestamp = b.Timestamp.UTC()
	return &b, nil
}
