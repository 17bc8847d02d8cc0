package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"votechain/internal/challenge"
	"votechain/internal/platform/postgres"
	"votechain/pkg/platform/sentinel"
)

// PostgresCredentials persists credentials in webauthn_credentials.
type PostgresCredentials struct {
	db *sql.DB
}

func NewPostgresCredentials(db *sql.DB) *PostgresCredentials {
	return &PostgresCredentials{db: db}
}

type storedCredential struct {
	Kind challenge.CredentialKind `json:"kind"`
	Data []byte                   `json:"data"`
}

func (s *PostgresCredentials) ListByVoter(ctx context.Context, voterID string) ([]challenge.Credential, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT credential_id, voter_id, credential, created_at
		FROM webauthn_credentials
		WHERE voter_id = $1
		ORDER BY created_at
	`, voterID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var out []challenge.Credential
	for rows.Next() {
		var c challenge.Credential
		var raw []byte
		if err := rows.Scan(&c.ID, &c.VoterID, &raw, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		var sc storedCredential
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("decode credential %s: %w", c.ID, err)
		}
		c.Kind, c.Data = sc.Kind, sc.Data
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	return out, nil
}

// Put upserts c. A credential id already bound to another voter is a conflict.
func (s *PostgresCredentials) Put(ctx context.Context, c challenge.Credential) error {
	raw, err := json.Marshal(storedCredential{Kind: c.Kind, Data: c.Data})
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO webauthn_credentials (credential_id, voter_id, credential, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (credential_id) DO UPDATE SET credential = EXCLUDED.credential
		WHERE webauthn_credentials.voter_id = EXCLUDED.voter_id
	`, c.ID, c.VoterID, raw, createdAt)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("put credential: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sentinel.ErrConflict
	}
	return nil
}
