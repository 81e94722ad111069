package event

import (
	"context"
	"sync"
)

// callLog records handler invocations across subscribers so tests can assert
// on delivery order.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *callLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.entries...)
}

// stubSubscriber is a configurable test double for the subscriber contract.
// The zero value observes everything at the default priority.
type stubSubscriber struct {
	name     string
	priority int
	hasPrio  bool
	observes func(payloadType string) bool

	log *callLog

	// handle, when set, runs for every routed handler after logging.
	handle func(ctx context.Context, e *Event) error
}

func newStub(name string, log *callLog) *stubSubscriber {
	return &stubSubscriber{name: name, log: log}
}

func (s *stubSubscriber) withPriority(p int) *stubSubscriber {
	s.priority = p
	s.hasPrio = true
	return s
}

func (s *stubSubscriber) Name() string { return s.name }

func (s *stubSubscriber) Priority() int {
	if s.hasPrio {
		return s.priority
	}
	return DefaultPriority
}

func (s *stubSubscriber) ShouldObserve(payloadType string) bool {
	if s.observes == nil {
		return true
	}
	return s.observes(payloadType)
}

func (s *stubSubscriber) record(ctx context.Context, method string, e *Event) error {
	if s.log != nil {
		s.log.add(s.name + "." + method)
	}
	if s.handle != nil {
		return s.handle(ctx, e)
	}
	return nil
}

func (s *stubSubscriber) OnCreated(ctx context.Context, e *Event) error {
	return s.record(ctx, "OnCreated", e)
}

func (s *stubSubscriber) OnUpdated(ctx context.Context, e *Event) error {
	return s.record(ctx, "OnUpdated", e)
}

func (s *stubSubscriber) OnPublished(ctx context.Context, e *Event) error {
	return s.record(ctx, "OnPublished", e)
}

func (s *stubSubscriber) OnDeleted(ctx context.Context, e *Event) error {
	return s.record(ctx, "OnDeleted", e)
}

// bareSubscriber implements only the four handlers, none of the optional
// capabilities, so registration defaults can be asserted.
type bareSubscriber struct {
	log *callLog
}

func (b *bareSubscriber) OnCreated(context.Context, *Event) error {
	if b.log != nil {
		b.log.add("bare.OnCreated")
	}
	return nil
}

func (b *bareSubscriber) OnUpdated(context.Context, *Event) error   { return nil }
func (b *bareSubscriber) OnPublished(context.Context, *Event) error { return nil }
func (b *bareSubscriber) OnDeleted(context.Context, *Event) error   { return nil }
