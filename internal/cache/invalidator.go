package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"inkwell/internal/content/models"
	"inkwell/internal/event"
)

// Commands is the slice of go-redis this package uses. *redis.Client
// satisfies it.
type Commands interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

const defaultTTL = 15 * time.Minute

// Invalidator keeps the read cache coherent with content mutations. It runs
// early (priority 10) so later subscribers never observe stale cache state.
// Published items are written through; every other mutation evicts.
type Invalidator struct {
	rdb    Commands
	logger *slog.Logger
	ttl    time.Duration
}

func NewInvalidator(rdb Commands, logger *slog.Logger) (*Invalidator, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis commands are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Invalidator{rdb: rdb, logger: logger, ttl: defaultTTL}, nil
}

func (i *Invalidator) Name() string { return "cache-invalidator" }

func (i *Invalidator) Priority() int { return 10 }

// ShouldObserve restricts the invalidator to content payloads.
func (i *Invalidator) ShouldObserve(payloadType string) bool {
	return payloadType == "*models.Content"
}

func (i *Invalidator) OnCreated(ctx context.Context, e *event.Event) error {
	// Nothing is cached for a brand-new item.
	return nil
}

func (i *Invalidator) OnUpdated(ctx context.Context, e *event.Event) error {
	return i.evict(ctx, e)
}

func (i *Invalidator) OnPublished(ctx context.Context, e *event.Event) error {
	c, err := contentPayload(e)
	if err != nil {
		return err
	}

	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cached content: %w", err)
	}
	if err := i.rdb.Set(ctx, itemKey(c.ID.String()), body, i.ttl).Err(); err != nil {
		return fmt.Errorf("cache published content: %w", err)
	}
	if err := i.rdb.Set(ctx, slugKey(c.Slug), c.ID.String(), i.ttl).Err(); err != nil {
		return fmt.Errorf("cache slug mapping: %w", err)
	}

	i.logger.DebugContext(ctx, "cached published content",
		"content_id", c.ID,
		"slug", c.Slug,
	)
	return nil
}

func (i *Invalidator) OnDeleted(ctx context.Context, e *event.Event) error {
	return i.evict(ctx, e)
}

func (i *Invalidator) evict(ctx context.Context, e *event.Event) error {
	c, err := contentPayload(e)
	if err != nil {
		return err
	}

	keys := []string{itemKey(c.ID.String()), slugKey(c.Slug)}
	if prev, ok := e.Previous()["Slug"].(string); ok && prev != c.Slug {
		keys = append(keys, slugKey(prev))
	}
	if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict cached content: %w", err)
	}

	i.logger.DebugContext(ctx, "evicted cached content",
		"content_id", c.ID,
		"kind", e.Kind().String(),
	)
	return nil
}

func contentPayload(e *event.Event) (*models.Content, error) {
	c, ok := e.Payload().(*models.Content)
	if !ok {
		return nil, fmt.Errorf("unexpected payload type %s", e.PayloadType())
	}
	return c, nil
}

func itemKey(id string) string   { return "content:" + id }
func slugKey(slug string) string { return "content:slug:" + slug }
