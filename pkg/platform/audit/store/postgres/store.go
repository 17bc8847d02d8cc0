package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	audit "votechain/pkg/platform/audit"
	txcontext "votechain/pkg/platform/tx"
)

const defaultListLimit = 100

// Store implements audit.Store on the audit_events table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append inserts an event. Re-inserting the same ID is a no-op.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (
			id, category, action, severity, subject, district_id, reason,
			request_id, actor_id, client_ip, device, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Action,
		string(event.Severity),
		event.Subject,
		event.DistrictID,
		event.Reason,
		event.RequestID,
		event.ActorID,
		event.IP,
		event.Device,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListRecent returns matching events, newest first.
func (s *Store) ListRecent(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	categories := []string{string(audit.CategoryCompliance), string(audit.CategorySecurity), string(audit.CategoryOperations)}
	if filter.Category != "" {
		categories = []string{string(filter.Category)}
	}

	query := `
		SELECT id, category, action, severity, subject, district_id, reason,
			request_id, actor_id, client_ip, device, occurred_at
		FROM audit_events
		WHERE category = ANY($1)
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, pq.Array(categories), limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			e                  audit.Event
			category, severity string
		)
		if err := rows.Scan(&e.ID, &category, &e.Action, &severity, &e.Subject, &e.DistrictID,
			&e.Reason, &e.RequestID, &e.ActorID, &e.IP, &e.Device, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Severity = audit.Severity(severity)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
