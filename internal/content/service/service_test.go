package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"inkwell/internal/content/models"
	"inkwell/internal/content/store"
	"inkwell/internal/event"
)

// recordingSubscriber captures every event it receives so tests can assert
// on what the service emitted.
type recordingSubscriber struct {
	mu     sync.Mutex
	events []*event.Event
}

func (r *recordingSubscriber) record(e *event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSubscriber) OnCreated(_ context.Context, e *event.Event) error {
	return r.record(e)
}

func (r *recordingSubscriber) OnUpdated(_ context.Context, e *event.Event) error {
	return r.record(e)
}

func (r *recordingSubscriber) OnPublished(_ context.Context, e *event.Event) error {
	return r.record(e)
}

func (r *recordingSubscriber) OnDeleted(_ context.Context, e *event.Event) error {
	return r.record(e)
}

func (r *recordingSubscriber) all() []*event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.Event{}, r.events...)
}

func (r *recordingSubscriber) last(t *testing.T) *event.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.events)
	return r.events[len(r.events)-1]
}

type ServiceSuite struct {
	suite.Suite

	svc        *Service
	dispatcher *event.Dispatcher
	sub        *recordingSubscriber
}

func (s *ServiceSuite) SetupTest() {
	registry := event.NewRegistry()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dispatcher, err := event.New(registry, event.WithLogger(logger))
	s.Require().NoError(err)

	s.sub = &recordingSubscriber{}
	s.Require().NoError(dispatcher.Register(s.sub))

	svc, err := New(store.NewInMemory(), dispatcher,
		WithLogger(logger),
		WithMode(event.Sync),
	)
	s.Require().NoError(err)

	s.svc = svc
	s.dispatcher = dispatcher
}

func (s *ServiceSuite) create(slug string) *models.Content {
	c, err := s.svc.Create(context.Background(), "alice", CreateInput{
		Slug:  slug,
		Title: "First Post",
		Body:  "hello",
		Tags:  []string{"news"},
	})
	s.Require().NoError(err)
	return c
}

func (s *ServiceSuite) TestNewValidatesArguments() {
	_, err := New(nil, s.dispatcher)
	s.Require().ErrorContains(err, "store is required")

	_, err = New(store.NewInMemory(), nil)
	s.Require().ErrorContains(err, "dispatcher is required")
}

func (s *ServiceSuite) TestCreateEmitsCreatedEvent() {
	c := s.create("first-post")

	s.Equal(models.StatusDraft, c.Status)
	s.Equal("alice", c.Author)

	e := s.sub.last(s.T())
	s.Equal(event.KindCreated, e.Kind())
	s.Equal("alice", e.Principal())
	s.Equal("content-service", e.Source())
	s.Equal("*models.Content", e.PayloadType())

	payload, ok := e.Payload().(*models.Content)
	s.Require().True(ok)
	s.Equal(c.ID, payload.ID)
}

func (s *ServiceSuite) TestCreateRejectsInvalidInput() {
	_, err := s.svc.Create(context.Background(), "alice", CreateInput{Title: "No Slug"})
	s.Require().ErrorContains(err, "slug is required")
	s.Empty(s.sub.all())
}

func (s *ServiceSuite) TestCreateDuplicateSlugEmitsNothing() {
	s.create("first-post")
	before := len(s.sub.all())

	_, err := s.svc.Create(context.Background(), "bob", CreateInput{
		Slug:  "first-post",
		Title: "Duplicate",
	})
	s.Require().Error(err)
	s.Len(s.sub.all(), before)
}

func (s *ServiceSuite) TestUpdateEmitsUpdatedWithPreviousValues() {
	c := s.create("first-post")

	title := "Second Title"
	updated, err := s.svc.Update(context.Background(), "alice", c.ID, UpdateInput{Title: &title})
	s.Require().NoError(err)
	s.Equal("Second Title", updated.Title)

	e := s.sub.last(s.T())
	s.Equal(event.KindUpdated, e.Kind())
	s.Equal(map[string]any{"Title": "First Post"}, e.Previous())
	s.Equal([]string{"Title"}, e.ChangedFields())
}

func (s *ServiceSuite) TestUpdateTagsOnlyEmitsMetadataUpdated() {
	c := s.create("first-post")

	_, err := s.svc.Update(context.Background(), "alice", c.ID, UpdateInput{
		Tags: []string{"news", "featured"},
	})
	s.Require().NoError(err)

	e := s.sub.last(s.T())
	s.Equal(event.KindMetadataUpdated, e.Kind())
}

func (s *ServiceSuite) TestUpdateNoChangeEmitsNothing() {
	c := s.create("first-post")
	before := len(s.sub.all())

	sameTitle := "First Post"
	_, err := s.svc.Update(context.Background(), "alice", c.ID, UpdateInput{Title: &sameTitle})
	s.Require().NoError(err)
	s.Len(s.sub.all(), before)
}

func (s *ServiceSuite) TestPublishEmitsPublishedEvent() {
	c := s.create("first-post")

	published, err := s.svc.Publish(context.Background(), "alice", c.ID, nil)
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, published.Status)
	s.Require().NotNil(published.PublishedAt)

	e := s.sub.last(s.T())
	s.Equal(event.KindPublished, e.Kind())
	_, scheduled := e.PublishAt()
	s.False(scheduled)
}

func (s *ServiceSuite) TestPublishCarriesFutureSchedule() {
	c := s.create("first-post")

	at := time.Now().Add(24 * time.Hour)
	_, err := s.svc.Publish(context.Background(), "alice", c.ID, &at)
	s.Require().NoError(err)

	e := s.sub.last(s.T())
	got, scheduled := e.PublishAt()
	s.True(scheduled)
	s.WithinDuration(at, got, time.Second)
}

func (s *ServiceSuite) TestPublishTwiceFails() {
	c := s.create("first-post")

	_, err := s.svc.Publish(context.Background(), "alice", c.ID, nil)
	s.Require().NoError(err)
	before := len(s.sub.all())

	_, err = s.svc.Publish(context.Background(), "alice", c.ID, nil)
	s.Require().ErrorContains(err, "already published")
	s.Len(s.sub.all(), before)
}

func (s *ServiceSuite) TestUnpublishEmitsStatusChanged() {
	c := s.create("first-post")
	_, err := s.svc.Publish(context.Background(), "alice", c.ID, nil)
	s.Require().NoError(err)

	back, err := s.svc.Unpublish(context.Background(), "alice", c.ID, "legal review")
	s.Require().NoError(err)
	s.Equal(models.StatusDraft, back.Status)
	s.Nil(back.PublishedAt)

	e := s.sub.last(s.T())
	s.Equal(event.KindStatusChanged, e.Kind())
	s.Equal("legal review", e.Reason())
	s.Equal(map[string]any{"Status": "published"}, e.Previous())
}

func (s *ServiceSuite) TestUnpublishDraftFails() {
	c := s.create("first-post")
	_, err := s.svc.Unpublish(context.Background(), "alice", c.ID, "")
	s.Require().ErrorContains(err, "not published")
}

func (s *ServiceSuite) TestSoftDeleteKeepsItem() {
	c := s.create("first-post")

	err := s.svc.Delete(context.Background(), "alice", c.ID, true, "stale")
	s.Require().NoError(err)

	kept, err := s.svc.Get(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusDeleted, kept.Status)
	s.NotNil(kept.DeletedAt)

	e := s.sub.last(s.T())
	s.Equal(event.KindDeleted, e.Kind())
	s.True(e.SoftDelete())
	s.Equal("stale", e.Reason())
}

func (s *ServiceSuite) TestHardDeleteRemovesItem() {
	c := s.create("first-post")

	err := s.svc.Delete(context.Background(), "alice", c.ID, false, "")
	s.Require().NoError(err)

	_, err = s.svc.Get(context.Background(), c.ID)
	s.Require().Error(err)

	e := s.sub.last(s.T())
	s.Equal(event.KindDeleted, e.Kind())
	s.False(e.SoftDelete())
}

func (s *ServiceSuite) TestReadsEmitNothing() {
	c := s.create("first-post")
	before := len(s.sub.all())

	_, err := s.svc.Get(context.Background(), c.ID)
	s.Require().NoError(err)
	_, err = s.svc.GetBySlug(context.Background(), "first-post")
	s.Require().NoError(err)
	_, err = s.svc.List(context.Background())
	s.Require().NoError(err)

	s.Len(s.sub.all(), before)
}

func (s *ServiceSuite) TestPayloadIsSnapshot() {
	c := s.create("first-post")

	payload, ok := s.sub.last(s.T()).Payload().(*models.Content)
	s.Require().True(ok)

	payload.Title = "mutated"
	fresh, err := s.svc.Get(context.Background(), c.ID)
	s.Require().NoError(err)
	s.Equal("First Post", fresh.Title)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
