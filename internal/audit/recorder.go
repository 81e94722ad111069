package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"inkwell/internal/content/models"
	"inkwell/internal/event"
)

const (
	failureThreshold = 5
	successThreshold = 3
)

// Recorder writes one audit entry per content event. Priority 5 puts it
// ahead of every other subscriber so the trail is written before any
// side effect runs.
//
// A circuit breaker tracks consecutive store failures; while open the
// recorder keeps trying the primary store but also retains failed entries
// in a bounded fallback buffer so a recovering store loses as little of
// the trail as possible.
type Recorder struct {
	store   Store
	logger  *slog.Logger
	breaker *circuitBreaker

	mu       sync.Mutex
	fallback []Entry
	maxHeld  int
}

func NewRecorder(store Store, logger *slog.Logger) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("audit store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:   store,
		logger:  logger,
		breaker: newCircuitBreaker(failureThreshold, successThreshold),
		maxHeld: 1000,
	}, nil
}

func (r *Recorder) Name() string { return "audit-trail" }

func (r *Recorder) Priority() int { return 5 }

// Degraded reports whether the breaker is open.
func (r *Recorder) Degraded() bool { return r.breaker.IsOpen() }

// Held returns the entries retained while the primary store was failing,
// newest last, and clears the buffer. Callers replay them once the store
// recovers.
func (r *Recorder) Held() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.fallback
	r.fallback = nil
	return out
}

func (r *Recorder) OnCreated(ctx context.Context, e *event.Event) error {
	return r.record(ctx, e)
}

func (r *Recorder) OnUpdated(ctx context.Context, e *event.Event) error {
	return r.record(ctx, e)
}

func (r *Recorder) OnPublished(ctx context.Context, e *event.Event) error {
	return r.record(ctx, e)
}

func (r *Recorder) OnDeleted(ctx context.Context, e *event.Event) error {
	return r.record(ctx, e)
}

func (r *Recorder) record(ctx context.Context, e *event.Event) error {
	entry := entryFrom(e)

	if err := r.store.Append(ctx, entry); err != nil {
		wasOpen := r.breaker.IsOpen()
		r.hold(entry)
		if r.breaker.RecordFailure() && !wasOpen {
			r.logger.WarnContext(ctx, "audit store circuit opened",
				"consecutive_failures", failureThreshold,
			)
		}
		return fmt.Errorf("append audit entry: %w", err)
	}

	wasOpen := r.breaker.IsOpen()
	if r.breaker.RecordSuccess() && wasOpen {
		r.logger.InfoContext(ctx, "audit store circuit closed")
	}
	return nil
}

func (r *Recorder) hold(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.fallback) >= r.maxHeld {
		r.fallback = r.fallback[1:]
	}
	r.fallback = append(r.fallback, entry)
}

func entryFrom(e *event.Event) Entry {
	entry := Entry{
		ID:         uuid.New(),
		EventID:    e.ID(),
		Kind:       e.Kind().String(),
		Principal:  e.Principal(),
		Source:     e.Source(),
		Reason:     e.Reason(),
		SoftDelete: e.SoftDelete(),
		Previous:   e.Previous(),
		OccurredAt: e.OccurredAt(),
		RecordedAt: time.Now(),
	}
	if c, ok := e.Payload().(*models.Content); ok {
		entry.ContentID = c.ID
		entry.Slug = c.Slug
	}
	return entry
}
