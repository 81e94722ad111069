package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PostgresStore persists audit entries. Schema:
//
//	CREATE TABLE audit_entries (
//	    id          UUID PRIMARY KEY,
//	    event_id    UUID NOT NULL,
//	    kind        TEXT NOT NULL,
//	    content_id  UUID NOT NULL,
//	    slug        TEXT NOT NULL,
//	    principal   TEXT NOT NULL,
//	    source      TEXT NOT NULL,
//	    reason      TEXT NOT NULL DEFAULT '',
//	    soft_delete BOOLEAN NOT NULL DEFAULT FALSE,
//	    previous    JSONB NOT NULL DEFAULT '{}',
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    recorded_at TIMESTAMPTZ NOT NULL
//	);
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	previous, err := json.Marshal(entry.Previous)
	if err != nil {
		return fmt.Errorf("encode previous values: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, event_id, kind, content_id, slug, principal, source, reason, soft_delete, previous, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		entry.ID, entry.EventID, entry.Kind, entry.ContentID, entry.Slug,
		entry.Principal, entry.Source, entry.Reason, entry.SoftDelete,
		previous, entry.OccurredAt, entry.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, kind, content_id, slug, principal, source, reason, soft_delete, previous, occurred_at, recorded_at
		FROM audit_entries
		ORDER BY recorded_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (s *PostgresStore) ListByContent(ctx context.Context, contentID uuid.UUID) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_id, kind, content_id, slug, principal, source, reason, soft_delete, previous, occurred_at, recorded_at
		FROM audit_entries
		WHERE content_id = $1
		ORDER BY recorded_at DESC`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries by content: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var entry Entry
		var previous []byte
		if err := rows.Scan(
			&entry.ID, &entry.EventID, &entry.Kind, &entry.ContentID, &entry.Slug,
			&entry.Principal, &entry.Source, &entry.Reason, &entry.SoftDelete,
			&previous, &entry.OccurredAt, &entry.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(previous) > 0 {
			if err := json.Unmarshal(previous, &entry.Previous); err != nil {
				return nil, fmt.Errorf("decode previous values: %w", err)
			}
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
