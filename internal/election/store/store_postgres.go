package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"votechain/internal/election"
)

// PostgresStore persists the switch in the single-row election_state table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed election store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) State(ctx context.Context) (election.State, error) {
	var st election.State
	err := s.db.QueryRowContext(ctx,
		`SELECT active, updated_at, updated_by FROM election_state WHERE id = 1`,
	).Scan(&st.Active, &st.UpdatedAt, &st.UpdatedBy)
	if err != nil {
		return election.State{}, fmt.Errorf("read election state: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) SetActive(ctx context.Context, active bool, by string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO election_state (id, active, updated_at, updated_by)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at,
			updated_by = EXCLUDED.updated_by
	`, active, at, by)
	if err != nil {
		return fmt.Errorf("set election state: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListCandidates(ctx context.Context) ([]election.Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT candidate_id, name, party, district_id FROM candidates ORDER BY candidate_id`)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	var out []election.Candidate
	for rows.Next() {
		var c election.Candidate
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.DistrictID); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PutCandidate(ctx context.Context, c election.Candidate) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (candidate_id, name, party, district_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id) DO UPDATE SET
			name = EXCLUDED.name,
			party = EXCLUDED.party,
			district_id = EXCLUDED.district_id
	`, c.ID, c.Name, c.Party, c.DistrictID)
	if err != nil {
		return fmt.Errorf("put candidate: %w", err)
	}
	return nil
}
