package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the content lifecycle state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusDeleted   Status = "deleted"
)

// Content is one managed content item. The event payloads the dispatcher
// fans out reference values of this type.
type Content struct {
	ID          uuid.UUID
	Slug        string
	Title       string
	Body        string
	Tags        []string
	Status      Status
	Author      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time
	DeletedAt   *time.Time
}

// NewContent validates and builds a draft item.
func NewContent(id uuid.UUID, slug, title, body, author string, now time.Time) (*Content, error) {
	slug = strings.TrimSpace(strings.ToLower(slug))
	title = strings.TrimSpace(title)
	if slug == "" {
		return nil, fmt.Errorf("slug is required")
	}
	if strings.ContainsAny(slug, " \t\n") {
		return nil, fmt.Errorf("slug must not contain whitespace")
	}
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if author == "" {
		return nil, fmt.Errorf("author is required")
	}
	return &Content{
		ID:        id,
		Slug:      slug,
		Title:     title,
		Body:      body,
		Status:    StatusDraft,
		Author:    author,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// CanPublish reports whether the item may transition to published.
func (c *Content) CanPublish() error {
	switch c.Status {
	case StatusDraft:
		return nil
	case StatusPublished:
		return fmt.Errorf("content is already published")
	default:
		return fmt.Errorf("deleted content cannot be published")
	}
}

// ApplyPublish transitions the item to published.
func (c *Content) ApplyPublish(now time.Time) {
	c.Status = StatusPublished
	c.PublishedAt = &now
	c.UpdatedAt = now
}

// ApplyUnpublish returns a published item to draft.
func (c *Content) ApplyUnpublish(now time.Time) {
	c.Status = StatusDraft
	c.PublishedAt = nil
	c.UpdatedAt = now
}

// CanDelete reports whether the item may be deleted.
func (c *Content) CanDelete() error {
	if c.Status == StatusDeleted {
		return fmt.Errorf("content is already deleted")
	}
	return nil
}

// ApplySoftDelete marks the item deleted without removing it from the store.
func (c *Content) ApplySoftDelete(now time.Time) {
	c.Status = StatusDeleted
	c.DeletedAt = &now
	c.UpdatedAt = now
}

// Clone returns a deep copy so stores can hand out snapshots.
func (c *Content) Clone() *Content {
	out := *c
	if c.Tags != nil {
		out.Tags = append([]string{}, c.Tags...)
	}
	if c.PublishedAt != nil {
		t := *c.PublishedAt
		out.PublishedAt = &t
	}
	if c.DeletedAt != nil {
		t := *c.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}
