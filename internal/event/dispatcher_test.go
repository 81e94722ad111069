package event

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type DispatcherSuite struct {
	suite.Suite
	registry   *Registry
	dispatcher *Dispatcher
	log        *callLog
	ctx        context.Context
}

func (s *DispatcherSuite) SetupTest() {
	s.registry = NewRegistry()
	s.log = &callLog{}
	s.ctx = context.Background()

	d, err := New(s.registry,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAsyncTimeout(200*time.Millisecond),
	)
	s.Require().NoError(err)
	s.dispatcher = d
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) event(kind Kind) *Event {
	e, err := NewBuilder().Kind(kind).Payload(payload{ID: "c1"}).Principal("alice").Build()
	s.Require().NoError(err)
	return e
}

func (s *DispatcherSuite) TestConstructorValidation() {
	_, err := New(nil)
	s.Require().Error(err)
}

func (s *DispatcherSuite) TestStructuralFailures() {
	s.Run("nil event is fatal", func() {
		_, err := s.dispatcher.Dispatch(s.ctx, nil, Sync)
		s.Require().ErrorIs(err, ErrNilEvent)
	})

	s.Run("unroutable kind is fatal, not subscriber-local", func() {
		sub := newStub("cache", s.log)
		s.Require().NoError(s.dispatcher.Register(sub))

		_, err := s.dispatcher.Dispatch(s.ctx, s.event(KindQueried), Sync)
		var unknown *UnknownEventKindError
		s.Require().ErrorAs(err, &unknown)
		s.Equal(KindQueried, unknown.Kind)
		s.Empty(s.log.all(), "no subscriber runs when routing fails")
		s.Equal(uint64(0), s.dispatcher.EventCount())
	})
}

func (s *DispatcherSuite) TestNoInterestedSubscribers() {
	s.Run("no registrations at all", func() {
		outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
		s.Require().NoError(err)
		s.Empty(outcomes)
		s.Equal(uint64(0), s.dispatcher.EventCount(), "uninterested dispatches are not counted")
	})

	s.Run("all subscribers filtered out", func() {
		sub := newStub("picky", s.log)
		sub.observes = func(string) bool { return false }
		s.Require().NoError(s.dispatcher.Register(sub))

		outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
		s.Require().NoError(err)
		s.Empty(outcomes)
		s.Empty(s.log.all(), "a subscriber whose filter rejects the payload type is never invoked")
		s.Equal(uint64(0), s.dispatcher.EventCount())
	})
}

func (s *DispatcherSuite) TestSyncPriorityOrder() {
	a := newStub("a", s.log).withPriority(10)
	b := newStub("b", s.log).withPriority(50)
	s.Require().NoError(s.dispatcher.Register(b))
	s.Require().NoError(s.dispatcher.Register(a))

	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 2)

	s.Equal([]string{"a.OnCreated", "b.OnCreated"}, s.log.all())
	s.Equal("a", outcomes[0].Subscriber)
	s.Equal("b", outcomes[1].Subscriber)
}

func (s *DispatcherSuite) TestKindRouting() {
	sub := newStub("router", s.log)
	s.Require().NoError(s.dispatcher.Register(sub))

	for kind, want := range map[Kind]string{
		KindCreated:         "router.OnCreated",
		KindUpdated:         "router.OnUpdated",
		KindStatusChanged:   "router.OnUpdated",
		KindMetadataUpdated: "router.OnUpdated",
		KindPublished:       "router.OnPublished",
		KindDeleted:         "router.OnDeleted",
	} {
		s.log.entries = nil
		_, err := s.dispatcher.Dispatch(s.ctx, s.event(kind), Sync)
		s.Require().NoError(err)
		s.Equal([]string{want}, s.log.all(), "kind %s", kind)
	}
}

func (s *DispatcherSuite) TestFailureIsolation() {
	failing := newStub("failing", s.log).withPriority(10)
	failing.handle = func(context.Context, *Event) error {
		return errors.New("boom")
	}
	healthy := newStub("healthy", s.log).withPriority(50)
	s.Require().NoError(s.dispatcher.Register(failing))
	s.Require().NoError(s.dispatcher.Register(healthy))

	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindUpdated), Sync)
	s.Require().NoError(err, "subscriber failures never surface to the caller")
	s.Require().Len(outcomes, 2)

	s.False(outcomes[0].Success)
	s.EqualError(outcomes[0].Err, "boom")
	s.True(outcomes[1].Success)
	s.Equal([]string{"failing.OnUpdated", "healthy.OnUpdated"}, s.log.all(),
		"a failing subscriber must not prevent the next one from running")

	stats := s.dispatcher.Statistics()
	s.Require().Len(stats.Subscribers, 2)
	s.Equal(uint64(1), stats.Subscribers[0].Failures)
	s.Equal(uint64(0), stats.Subscribers[1].Failures)
}

func (s *DispatcherSuite) TestPanicIsolation() {
	panicking := newStub("panicking", s.log).withPriority(10)
	panicking.handle = func(context.Context, *Event) error {
		panic("subscriber bug")
	}
	healthy := newStub("healthy", s.log).withPriority(50)
	s.Require().NoError(s.dispatcher.Register(panicking))
	s.Require().NoError(s.dispatcher.Register(healthy))

	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 2)
	s.False(outcomes[0].Success)
	s.Contains(outcomes[0].Err.Error(), "subscriber bug")
	s.True(outcomes[1].Success)
}

func (s *DispatcherSuite) TestPublishScenario() {
	cache := newStub("CacheStub", s.log).withPriority(10)
	audit := newStub("AuditStub", s.log).withPriority(5)
	s.Require().NoError(s.dispatcher.Register(cache))
	s.Require().NoError(s.dispatcher.Register(audit))

	e, err := NewPublished(payload{ID: "contentX"}, "alice")
	s.Require().NoError(err)

	outcomes, err := s.dispatcher.Dispatch(s.ctx, e, Sync)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 2)

	s.Equal([]string{"AuditStub.OnPublished", "CacheStub.OnPublished"}, s.log.all())
	s.Equal(uint64(1), s.dispatcher.EventCount())
	s.Equal(uint64(1), s.dispatcher.Statistics().KindCounts[KindPublished])
}

func (s *DispatcherSuite) TestAsyncDeliversToAll() {
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		sub := newStub(fmt.Sprintf("sub-%d", i), s.log).withPriority(i * 10)
		sub.handle = func(context.Context, *Event) error {
			wg.Done()
			return nil
		}
		s.Require().NoError(s.dispatcher.Register(sub))
	}

	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Async)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 3)

	wg.Wait()
	for i, o := range outcomes {
		s.True(o.Success, "outcome %d", i)
	}
	// Outcomes come back indexed by priority order even though completion
	// order is unspecified.
	s.Equal("sub-0", outcomes[0].Subscriber)
	s.Equal("sub-1", outcomes[1].Subscriber)
	s.Equal("sub-2", outcomes[2].Subscriber)
	s.Equal(uint64(1), s.dispatcher.EventCount())
}

func (s *DispatcherSuite) TestAsyncTimeout() {
	stall := make(chan struct{})
	defer close(stall)

	slow := newStub("slow", s.log).withPriority(10)
	slow.handle = func(ctx context.Context, _ *Event) error {
		// Ignores the context on purpose: the dispatcher must abandon it,
		// not kill it.
		<-stall
		return nil
	}
	fast := newStub("fast", s.log).withPriority(50)
	s.Require().NoError(s.dispatcher.Register(slow))
	s.Require().NoError(s.dispatcher.Register(fast))

	start := time.Now()
	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindUpdated), Async)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 2)
	s.Less(time.Since(start), 2*time.Second, "dispatch returns at the deadline, not when the stalled handler does")

	s.False(outcomes[0].Success)
	s.True(outcomes[0].TimedOut)
	s.ErrorIs(outcomes[0].Err, context.DeadlineExceeded)
	s.True(outcomes[1].Success, "a stalled subscriber must not fail the fast one")

	stats := s.dispatcher.Statistics()
	s.Equal(uint64(1), stats.Subscribers[0].Failures)
}

func (s *DispatcherSuite) TestAsyncContextAwareHandlerStopsAtDeadline() {
	polite := newStub("polite", s.log)
	polite.handle = func(ctx context.Context, _ *Event) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	s.Require().NoError(s.dispatcher.Register(polite))

	outcomes, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Async)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.False(outcomes[0].Success)
	s.True(outcomes[0].TimedOut)
}

func (s *DispatcherSuite) TestUnregisterMidFlight() {
	started := make(chan struct{})
	release := make(chan struct{})

	slow := newStub("slow", s.log)
	slow.handle = func(context.Context, *Event) error {
		close(started)
		<-release
		return nil
	}
	s.Require().NoError(s.dispatcher.Register(slow))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Async)
		s.NoError(err)
	}()

	<-started
	s.Require().True(s.dispatcher.Unregister(slow), "unregistering mid-flight must not throw")
	close(release)
	<-done

	// The already-submitted task ran to completion; its outcome is simply
	// not recorded against the removed subscriber.
	s.Equal([]string{"slow.OnCreated"}, s.log.all())
	s.Empty(s.dispatcher.Statistics().Subscribers)
}

func (s *DispatcherSuite) TestConcurrentDispatches() {
	sub := newStub("counter", s.log)
	s.Require().NoError(s.dispatcher.Register(sub))

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(uint64(n), s.dispatcher.EventCount())
	stats := s.dispatcher.Statistics()
	s.Require().Len(stats.Subscribers, 1)
	s.Equal(uint64(n), stats.Subscribers[0].Notifications)
	s.Equal(uint64(0), stats.Subscribers[0].Failures)
}

func (s *DispatcherSuite) TestStatisticsSnapshot() {
	sub := newStub("cache", s.log)
	s.Require().NoError(s.dispatcher.Register(sub))

	_, err := s.dispatcher.Dispatch(s.ctx, s.event(KindCreated), Sync)
	s.Require().NoError(err)
	_, err = s.dispatcher.Dispatch(s.ctx, s.event(KindDeleted), Sync)
	s.Require().NoError(err)

	stats := s.dispatcher.Statistics()
	s.Equal(uint64(2), stats.Events)
	s.Equal(uint64(1), stats.KindCounts[KindCreated])
	s.Equal(uint64(1), stats.KindCounts[KindDeleted])
	s.Equal(uint64(0), stats.KindCounts[KindPublished])
	s.Require().Len(stats.Subscribers, 1)
	s.Equal(uint64(2), stats.Subscribers[0].Notifications)
}
