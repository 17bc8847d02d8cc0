package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"votechain/internal/biometric"
	"votechain/internal/identity"
	"votechain/internal/platform/postgres"
	"votechain/pkg/platform/sentinel"
	"votechain/pkg/platform/tx"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore persists identities and master directory entries in PostgreSQL.
// Writes join the transaction carried in ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed identity store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

// PutMaster upserts a master directory entry.
func (s *PostgresStore) PutMaster(ctx context.Context, m identity.MasterIdentity) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO master_identities (voter_id, district_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (voter_id) DO UPDATE SET
			district_id = EXCLUDED.district_id,
			role = EXCLUDED.role
	`, m.VoterID.String(), m.DistrictID, string(m.Role))
	if err != nil {
		return fmt.Errorf("put master identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindMaster(ctx context.Context, id identity.VoterID) (*identity.MasterIdentity, error) {
	var m identity.MasterIdentity
	var voterID, role string
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT voter_id, district_id, role FROM master_identities WHERE voter_id = $1
	`, id.String()).Scan(&voterID, &m.DistrictID, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find master identity: %w", err)
	}
	m.VoterID = identity.VoterID(voterID)
	if m.Role, err = identity.ParseRole(role); err != nil {
		return nil, fmt.Errorf("find master identity: stored role %q: %w", role, err)
	}
	return &m, nil
}

func (s *PostgresStore) FindByVoterID(ctx context.Context, id identity.VoterID) (*identity.Record, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT voter_id, district_id, role, face_descriptor, fingerprint_descriptor,
		       has_voted, registered_at, voted_at
		FROM identities
		WHERE voter_id = $1
	`, id.String())
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListDescriptors(ctx context.Context) ([]identity.DescriptorSet, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT voter_id, face_descriptor, fingerprint_descriptor FROM identities
	`)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var out []identity.DescriptorSet
	for rows.Next() {
		var voterID string
		var faceRaw, fingerprintRaw []byte
		if err := rows.Scan(&voterID, &faceRaw, &fingerprintRaw); err != nil {
			return nil, fmt.Errorf("scan descriptors: %w", err)
		}
		set := identity.DescriptorSet{VoterID: identity.VoterID(voterID)}
		if err := json.Unmarshal(faceRaw, &set.Face); err != nil {
			return nil, fmt.Errorf("decode face descriptor for %s: %w", voterID, err)
		}
		if err := json.Unmarshal(fingerprintRaw, &set.Fingerprint); err != nil {
			return nil, fmt.Errorf("decode fingerprint descriptor for %s: %w", voterID, err)
		}
		out = append(out, set)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	return out, nil
}

// Create inserts rec. The primary key and the partial unique index on
// fingerprint_hash surface as sentinel.ErrConflict.
func (s *PostgresStore) Create(ctx context.Context, rec *identity.Record) error {
	face, err := json.Marshal(rec.Face)
	if err != nil {
		return fmt.Errorf("encode face descriptor: %w", err)
	}
	fingerprint, err := json.Marshal(rec.Fingerprint)
	if err != nil {
		return fmt.Errorf("encode fingerprint descriptor: %w", err)
	}
	var fingerprintHash sql.NullString
	if rec.Fingerprint.Kind == biometric.KindHash {
		fingerprintHash = sql.NullString{String: rec.Fingerprint.Hash, Valid: true}
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO identities (voter_id, district_id, role, face_descriptor, fingerprint_descriptor,
		                        fingerprint_hash, has_voted, registered_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
	`, rec.VoterID.String(), rec.DistrictID, string(rec.Role), face, fingerprint, fingerprintHash, rec.RegisteredAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

// MarkVoted is a compare-and-set on has_voted.
func (s *PostgresStore) MarkVoted(ctx context.Context, id identity.VoterID, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE identities SET has_voted = TRUE, voted_at = $2
		WHERE voter_id = $1 AND has_voted = FALSE
	`, id.String(), at)
	if err != nil {
		return fmt.Errorf("mark voted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark voted: %w", err)
	}
	if n == 1 {
		return nil
	}

	var exists bool
	if err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM identities WHERE voter_id = $1)`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("mark voted: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrAlreadyUsed
}

func (s *PostgresStore) Counts(ctx context.Context) (identity.Counts, error) {
	var c identity.Counts
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE has_voted) FROM identities
	`).Scan(&c.Registered, &c.Voted)
	if err != nil {
		return identity.Counts{}, fmt.Errorf("count identities: %w", err)
	}
	return c, nil
}

func scanRecord(row *sql.Row) (*identity.Record, error) {
	var (
		rec                     identity.Record
		voterID, role           string
		faceRaw, fingerprintRaw []byte
		votedAt                 sql.NullTime
	)
	if err := row.Scan(&voterID, &rec.DistrictID, &role, &faceRaw, &fingerprintRaw,
		&rec.HasVoted, &rec.RegisteredAt, &votedAt); err != nil {
		return nil, err
	}
	rec.VoterID = identity.VoterID(voterID)
	rec.Role = identity.Role(role)
	if err := json.Unmarshal(faceRaw, &rec.Face); err != nil {
		return nil, fmt.Errorf("decode face descriptor: %w", err)
	}
	if err := json.Unmarshal(fingerprintRaw, &rec.Fingerprint); err != nil {
		return nil, fmt.Errorf("decode fingerprint descriptor: %w", err)
	}
	if votedAt.Valid {
		t := votedAt.Time
		rec.VotedAt = &t
	}
	return &rec, nil
}
