package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"inkwell/internal/content/models"
	"inkwell/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Postgres persists content items. Schema:
//
//	CREATE TABLE content (
//	    id           UUID PRIMARY KEY,
//	    slug         TEXT NOT NULL UNIQUE,
//	    title        TEXT NOT NULL,
//	    body         TEXT NOT NULL,
//	    tags         TEXT[] NOT NULL DEFAULT '{}',
//	    status       TEXT NOT NULL,
//	    author       TEXT NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    updated_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ,
//	    deleted_at   TIMESTAMPTZ
//	);
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Create(ctx context.Context, c *models.Content) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content (id, slug, title, body, tags, status, author, created_at, updated_at, published_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.Slug, c.Title, c.Body, pq.Array(c.Tags), c.Status, c.Author,
		c.CreatedAt, c.UpdatedAt, c.PublishedAt, c.DeletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("content %s: %w", c.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, body, tags, status, author, created_at, updated_at, published_at, deleted_at
		FROM content WHERE id = $1`, id)
	return scanContent(row)
}

func (s *Postgres) GetBySlug(ctx context.Context, slug string) (*models.Content, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, slug, title, body, tags, status, author, created_at, updated_at, published_at, deleted_at
		FROM content WHERE slug = $1`, slug)
	return scanContent(row)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Content, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, slug, title, body, tags, status, author, created_at, updated_at, published_at, deleted_at
		FROM content ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var out []*models.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Postgres) Update(ctx context.Context, c *models.Content) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE content
		SET slug = $2, title = $3, body = $4, tags = $5, status = $6,
		    updated_at = $7, published_at = $8, deleted_at = $9
		WHERE id = $1`,
		c.ID, c.Slug, c.Title, c.Body, pq.Array(c.Tags), c.Status,
		c.UpdatedAt, c.PublishedAt, c.DeletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return fmt.Errorf("slug %q: %w", c.Slug, sentinel.ErrConflict)
		}
		return fmt.Errorf("update content: %w", err)
	}
	return requireRow(res, c.ID)
}

func (s *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("content %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*models.Content, error) {
	var (
		c           models.Content
		tags        pq.StringArray
		publishedAt sql.NullTime
		deletedAt   sql.NullTime
	)
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Body, &tags, &c.Status, &c.Author,
		&c.CreatedAt, &c.UpdatedAt, &publishedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("content: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	c.Tags = tags
	if publishedAt.Valid {
		t := publishedAt.Time
		c.PublishedAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		c.DeletedAt = &t
	}
	return &c, nil
}
