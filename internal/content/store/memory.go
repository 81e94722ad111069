package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"inkwell/internal/content/models"
	"inkwell/pkg/platform/sentinel"
)

// InMemory is the development and test store. Slug uniqueness is enforced
// the same way the postgres store does it, so services see identical errors.
type InMemory struct {
	mu     sync.RWMutex
	items  map[uuid.UUID]*models.Content
	bySlug map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		items:  make(map[uuid.UUID]*models.Content),
		bySlug: make(map[string]uuid.UUID),
	}
}

func (s *InMemory) Create(_ context.Context, c *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[c.ID]; ok {
		return fmt.Errorf("content %s: %w", c.ID, sentinel.ErrConflict)
	}
	if _, ok := s.bySlug[c.Slug]; ok {
		return fmt.Errorf("slug %q: %w", c.Slug, sentinel.ErrConflict)
	}
	s.items[c.ID] = c.Clone()
	s.bySlug[c.Slug] = c.ID
	return nil
}

func (s *InMemory) Get(_ context.Context, id uuid.UUID) (*models.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", id, sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *InMemory) GetBySlug(_ context.Context, slug string) (*models.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("slug %q: %w", slug, sentinel.ErrNotFound)
	}
	return s.items[id].Clone(), nil
}

func (s *InMemory) List(_ context.Context) ([]*models.Content, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Content, 0, len(s.items))
	for _, c := range s.items {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemory) Update(_ context.Context, c *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.items[c.ID]
	if !ok {
		return fmt.Errorf("content %s: %w", c.ID, sentinel.ErrNotFound)
	}
	if existing.Slug != c.Slug {
		if _, taken := s.bySlug[c.Slug]; taken {
			return fmt.Errorf("slug %q: %w", c.Slug, sentinel.ErrConflict)
		}
		delete(s.bySlug, existing.Slug)
		s.bySlug[c.Slug] = c.ID
	}
	s.items[c.ID] = c.Clone()
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[id]
	if !ok {
		return fmt.Errorf("content %s: %w", id, sentinel.ErrNotFound)
	}
	delete(s.bySlug, c.Slug)
	delete(s.items, id)
	return nil
}
