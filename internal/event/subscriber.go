package event

import (
	"context"
	"fmt"
)

// Subscriber is the contract every reactive consumer implements. Handlers
// receive the event read-only; returning an error marks the notification
// failed for this subscriber without affecting the others.
type Subscriber interface {
	OnCreated(ctx context.Context, e *Event) error
	OnUpdated(ctx context.Context, e *Event) error
	OnPublished(ctx context.Context, e *Event) error
	OnDeleted(ctx context.Context, e *Event) error
}

// The optional capabilities below stand in for default methods: the registry
// probes for them once at registration and falls back to defaults when a
// subscriber does not implement them.

// Named lets a subscriber override the default name (its Go type name).
type Named interface {
	Name() string
}

// Prioritized lets a subscriber override DefaultPriority. Lower values are
// notified earlier; ties break on registration order.
type Prioritized interface {
	Priority() int
}

// Filtered lets a subscriber restrict which payload types it observes.
// Without it a subscriber observes everything.
type Filtered interface {
	ShouldObserve(payloadType string) bool
}

// DefaultPriority applies to subscribers that do not implement Prioritized.
const DefaultPriority = 50

func subscriberName(s Subscriber) string {
	if n, ok := s.(Named); ok {
		if name := n.Name(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%T", s)
}

func subscriberPriority(s Subscriber) int {
	if p, ok := s.(Prioritized); ok {
		return p.Priority()
	}
	return DefaultPriority
}

func subscriberFilter(s Subscriber) func(string) bool {
	if f, ok := s.(Filtered); ok {
		return f.ShouldObserve
	}
	return func(string) bool { return true }
}
