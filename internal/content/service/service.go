package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/content/models"
	"inkwell/internal/event"
	"inkwell/internal/platform/metrics"
	"inkwell/internal/platform/middleware"
)

// Store is the persistence boundary for content items.
type Store interface {
	Create(ctx context.Context, c *models.Content) error
	Get(ctx context.Context, id uuid.UUID) (*models.Content, error)
	GetBySlug(ctx context.Context, slug string) (*models.Content, error)
	List(ctx context.Context) ([]*models.Content, error)
	Update(ctx context.Context, c *models.Content) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Service orchestrates the content lifecycle. Every successful mutation
// emits exactly one event through the dispatcher; read operations emit
// nothing. Event delivery failures never roll back the mutation.
type Service struct {
	store      Store
	dispatcher *event.Dispatcher
	mode       event.Mode
	logger     *slog.Logger
	metrics    *metrics.Metrics
	source     string
}

type serviceConfig struct {
	mode    event.Mode
	logger  *slog.Logger
	metrics *metrics.Metrics
	source  string
}

type Option func(*serviceConfig)

func WithLogger(logger *slog.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *serviceConfig) { c.metrics = m }
}

// WithMode selects sync or async event delivery. Async is the default: the
// HTTP path should not wait on slow subscribers.
func WithMode(mode event.Mode) Option {
	return func(c *serviceConfig) { c.mode = mode }
}

// WithSource labels the events this service emits (default "content-service").
func WithSource(source string) Option {
	return func(c *serviceConfig) { c.source = source }
}

func New(store Store, dispatcher *event.Dispatcher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	cfg := &serviceConfig{
		mode:   event.Async,
		logger: slog.Default(),
		source: "content-service",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Service{
		store:      store,
		dispatcher: dispatcher,
		mode:       cfg.mode,
		logger:     cfg.logger,
		metrics:    cfg.metrics,
		source:     cfg.source,
	}, nil
}

// CreateInput carries the caller-supplied fields of a new item.
type CreateInput struct {
	Slug  string
	Title string
	Body  string
	Tags  []string
}

func (s *Service) Create(ctx context.Context, principal string, in CreateInput) (*models.Content, error) {
	c, err := models.NewContent(uuid.New(), in.Slug, in.Title, in.Body, principal, time.Now())
	if err != nil {
		return nil, err
	}
	if len(in.Tags) > 0 {
		c.Tags = append([]string{}, in.Tags...)
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ContentCreated.Inc()
	}

	s.emit(ctx, s.builder(ctx, event.KindCreated, c, principal))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Content, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Content, error) {
	return s.store.GetBySlug(ctx, slug)
}

func (s *Service) List(ctx context.Context) ([]*models.Content, error) {
	return s.store.List(ctx)
}

// UpdateInput carries a partial update; nil fields are left untouched.
type UpdateInput struct {
	Title *string
	Body  *string
	Tags  []string
}

// Update applies a partial update. A tags-only change is a metadata update;
// any title or body change is a content update carrying the prior values of
// every mutated field.
func (s *Service) Update(ctx context.Context, principal string, id uuid.UUID, in UpdateInput) (*models.Content, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := make(map[string]any)
	if in.Title != nil && *in.Title != c.Title {
		previous["Title"] = c.Title
		c.Title = *in.Title
	}
	if in.Body != nil && *in.Body != c.Body {
		previous["Body"] = c.Body
		c.Body = *in.Body
	}
	tagsChanged := in.Tags != nil && !equalTags(c.Tags, in.Tags)
	if tagsChanged {
		previous["Tags"] = c.Tags
		c.Tags = append([]string{}, in.Tags...)
	}
	if len(previous) == 0 {
		return c, nil
	}
	c.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}

	kind := event.KindUpdated
	if tagsChanged && len(previous) == 1 {
		kind = event.KindMetadataUpdated
	}
	b := s.builder(ctx, kind, c, principal)
	for field, value := range previous {
		b.Previous(field, value)
	}
	s.emit(ctx, b)
	return c, nil
}

// Publish transitions a draft to published. A non-nil publishAt in the
// future is carried on the event so downstream consumers can schedule;
// the status transition itself happens now.
func (s *Service) Publish(ctx context.Context, principal string, id uuid.UUID, publishAt *time.Time) (*models.Content, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.CanPublish(); err != nil {
		return nil, err
	}
	c.ApplyPublish(time.Now())

	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ContentPublished.Inc()
	}

	b := s.builder(ctx, event.KindPublished, c, principal)
	if publishAt != nil && publishAt.After(time.Now()) {
		b.PublishAt(*publishAt)
	}
	s.emit(ctx, b)
	return c, nil
}

// Unpublish returns a published item to draft and emits a status change.
func (s *Service) Unpublish(ctx context.Context, principal string, id uuid.UUID, reason string) (*models.Content, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != models.StatusPublished {
		return nil, fmt.Errorf("content is not published")
	}
	previous := c.Status
	c.ApplyUnpublish(time.Now())

	if err := s.store.Update(ctx, c); err != nil {
		return nil, err
	}

	b := s.builder(ctx, event.KindStatusChanged, c, principal).
		Previous("Status", string(previous)).
		Reason(reason)
	s.emit(ctx, b)
	return c, nil
}

// Delete removes an item. Soft deletion keeps the row and marks it deleted;
// hard deletion removes it from the store. Either way one deleted event is
// emitted carrying the soft flag and the caller's reason.
func (s *Service) Delete(ctx context.Context, principal string, id uuid.UUID, soft bool, reason string) error {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := c.CanDelete(); err != nil {
		return err
	}

	if soft {
		c.ApplySoftDelete(time.Now())
		if err := s.store.Update(ctx, c); err != nil {
			return err
		}
	} else {
		if err := s.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	if s.metrics != nil {
		s.metrics.ContentDeleted.Inc()
	}

	b := s.builder(ctx, event.KindDeleted, c, principal).
		SoftDelete(soft).
		Reason(reason)
	s.emit(ctx, b)
	return nil
}

func (s *Service) builder(ctx context.Context, kind event.Kind, c *models.Content, principal string) *event.Builder {
	b := event.NewBuilder().
		Kind(kind).
		Payload(c.Clone()).
		Principal(principal).
		Source(s.source)
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		b.ContextValue("request_id", requestID)
	}
	return b
}

// emit builds and dispatches one event. A build or routing failure here is a
// programming error in this package; it is logged, never surfaced, because
// the mutation is already committed.
func (s *Service) emit(ctx context.Context, b *event.Builder) {
	e, err := b.Build()
	if err != nil {
		s.logger.ErrorContext(ctx, "event build failed", "error", err)
		return
	}
	if _, err := s.dispatcher.Dispatch(ctx, e, s.mode); err != nil {
		s.logger.ErrorContext(ctx, "event dispatch failed",
			"event_id", e.ID(),
			"kind", e.Kind().String(),
			"error", err,
		)
	}
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
