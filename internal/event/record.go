package event

import (
	"sync/atomic"
	"time"
)

// Record wraps one registered subscriber with the runtime state the registry
// and dispatcher maintain for it. Priority and filter are captured once at
// registration and never re-queried, so ordering cannot change under a
// dispatch in flight.
type Record struct {
	sub          Subscriber
	name         string
	priority     int
	seq          uint64
	registeredAt time.Time
	filter       func(string) bool

	active atomic.Bool

	// Counters are atomic so concurrent dispatches for different events
	// never corrupt statistics.
	notifications atomic.Uint64
	failures      atomic.Uint64
	totalNanos    atomic.Int64
	lastNotified  atomic.Int64 // unix nanos, 0 = never
	lastFailure   atomic.Int64 // unix nanos, 0 = never
}

func newRecord(sub Subscriber, seq uint64) *Record {
	r := &Record{
		sub:          sub,
		name:         subscriberName(sub),
		priority:     subscriberPriority(sub),
		seq:          seq,
		registeredAt: time.Now(),
		filter:       subscriberFilter(sub),
	}
	r.active.Store(true)
	return r
}

func (r *Record) Name() string            { return r.name }
func (r *Record) Priority() int           { return r.priority }
func (r *Record) RegisteredAt() time.Time { return r.registeredAt }
func (r *Record) Active() bool            { return r.active.Load() }

func (r *Record) observe(o Outcome) {
	r.notifications.Add(1)
	r.totalNanos.Add(o.Duration.Nanoseconds())
	now := time.Now().UnixNano()
	r.lastNotified.Store(now)
	if !o.Success {
		r.failures.Add(1)
		r.lastFailure.Store(now)
	}
}

func (r *Record) stats() SubscriberStats {
	notifications := r.notifications.Load()
	totalNanos := r.totalNanos.Load()

	var avg time.Duration
	if notifications > 0 {
		avg = time.Duration(totalNanos / int64(notifications))
	}

	s := SubscriberStats{
		Name:          r.name,
		Priority:      r.priority,
		Active:        r.active.Load(),
		RegisteredAt:  r.registeredAt,
		Notifications: notifications,
		Failures:      r.failures.Load(),
		TotalDuration: time.Duration(totalNanos),
		AvgDuration:   avg,
	}
	if ns := r.lastNotified.Load(); ns > 0 {
		s.LastNotified = time.Unix(0, ns)
	}
	if ns := r.lastFailure.Load(); ns > 0 {
		s.LastFailure = time.Unix(0, ns)
	}
	return s
}

// Outcome is the ephemeral result of one (event, subscriber) notification
// attempt. It feeds statistics and is discarded after aggregation.
type Outcome struct {
	Subscriber string
	Success    bool
	TimedOut   bool
	Duration   time.Duration
	Err        error
}
