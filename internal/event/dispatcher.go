package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
)

// Mode selects how one dispatch call delivers to its subscribers.
type Mode int

const (
	// Sync delivers on the calling goroutine, strictly in priority order.
	Sync Mode = iota
	// Async delivers through the bounded worker pool. Submission follows
	// priority order, completion order is not guaranteed.
	Async
)

func (m Mode) String() string {
	switch m {
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrNilEvent is returned when Dispatch is handed a nil event.
var ErrNilEvent = errors.New("nil event")

const (
	defaultPoolSize     = 10
	defaultAsyncTimeout = 5 * time.Second
)

// Dispatcher fans one event out to all interested subscribers and records a
// per-subscriber outcome for each. A subscriber failing, panicking, or
// stalling never affects delivery to the others; only a structurally invalid
// event fails the dispatch call itself.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	metrics  *Metrics
	tracer   trace.Tracer

	pool         *semaphore.Weighted
	poolSize     int64
	asyncTimeout time.Duration

	events     atomic.Uint64
	kindCounts map[Kind]*atomic.Uint64
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) { d.tracer = t }
}

// WithPoolSize bounds the number of subscriber notifications running
// concurrently in Async mode.
func WithPoolSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.poolSize = int64(n)
		}
	}
}

// WithAsyncTimeout sets the per-event deadline Async dispatches wait for.
func WithAsyncTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.asyncTimeout = timeout
		}
	}
}

// New builds a Dispatcher over the given registry.
func New(registry *Registry, opts ...Option) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	d := &Dispatcher{
		registry:     registry,
		logger:       slog.Default(),
		tracer:       noop.NewTracerProvider().Tracer("inkwell/event"),
		poolSize:     defaultPoolSize,
		asyncTimeout: defaultAsyncTimeout,
		kindCounts:   make(map[Kind]*atomic.Uint64, len(Kinds())),
	}
	for _, kind := range Kinds() {
		d.kindCounts[kind] = &atomic.Uint64{}
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = semaphore.NewWeighted(d.poolSize)
	return d, nil
}

// Register adds a subscriber. Its priority and filter are read once here and
// never re-queried.
func (d *Dispatcher) Register(sub Subscriber) error {
	return d.registry.Register(sub)
}

// Unregister removes a subscriber; idempotent. Notifications already in
// flight for it are allowed to finish.
func (d *Dispatcher) Unregister(sub Subscriber) bool {
	return d.registry.Unregister(sub)
}

func (d *Dispatcher) IsRegistered(sub Subscriber) bool {
	return d.registry.IsRegistered(sub)
}

func (d *Dispatcher) SubscriberCount() int {
	return d.registry.Count()
}

// EventCount returns the number of events delivered to at least one
// subscriber. Dispatches that resolve no interested subscribers are not
// counted.
func (d *Dispatcher) EventCount() uint64 {
	return d.events.Load()
}

// Statistics returns a snapshot of per-kind event counts and per-subscriber
// counters.
func (d *Dispatcher) Statistics() Stats {
	counts := make(map[Kind]uint64, len(d.kindCounts))
	for kind, c := range d.kindCounts {
		counts[kind] = c.Load()
	}
	return Stats{
		Events:      d.events.Load(),
		KindCounts:  counts,
		Subscribers: d.registry.SubscriberStats(),
	}
}

// handlerFunc routes one event into the right method of the subscriber
// contract.
type handlerFunc func(Subscriber, context.Context, *Event) error

// route maps a kind to its handler. StatusChanged and MetadataUpdated are
// update variants and share OnUpdated. Queried has no handler mapping, so
// dispatching it fails the same way an unknown kind does.
func route(kind Kind) (handlerFunc, error) {
	switch kind {
	case KindCreated:
		return Subscriber.OnCreated, nil
	case KindUpdated, KindStatusChanged, KindMetadataUpdated:
		return Subscriber.OnUpdated, nil
	case KindPublished:
		return Subscriber.OnPublished, nil
	case KindDeleted:
		return Subscriber.OnDeleted, nil
	default:
		return nil, &UnknownEventKindError{Kind: kind}
	}
}

// Dispatch delivers one event to every interested subscriber and returns the
// per-subscriber outcomes in priority order. Subscriber-level failures are
// folded into the outcomes, never returned as the error; only a nil event or
// an unroutable kind fails the call.
func (d *Dispatcher) Dispatch(ctx context.Context, e *Event, mode Mode) ([]Outcome, error) {
	if e == nil {
		return nil, ErrNilEvent
	}

	call, err := route(e.Kind())
	if err != nil {
		return nil, err
	}

	records := d.registry.InterestedFor(e.PayloadType())
	if len(records) == 0 {
		d.logger.DebugContext(ctx, "no interested subscribers",
			"event_id", e.ID(),
			"kind", e.Kind().String(),
			"payload_type", e.PayloadType(),
		)
		return nil, nil
	}

	ctx, span := d.tracer.Start(ctx, "event.dispatch",
		trace.WithAttributes(
			attribute.String("event.id", e.ID().String()),
			attribute.String("event.kind", e.Kind().String()),
			attribute.String("dispatch.mode", mode.String()),
			attribute.Int("dispatch.subscribers", len(records)),
		),
	)
	defer span.End()

	d.events.Add(1)
	if c, ok := d.kindCounts[e.Kind()]; ok {
		c.Add(1)
	}
	d.metrics.observeEvent(e.Kind())

	start := time.Now()
	var outcomes []Outcome
	switch mode {
	case Async:
		outcomes = d.dispatchAsync(ctx, e, records, call)
	default:
		outcomes = d.dispatchSync(ctx, e, records, call)
	}
	d.metrics.observeDuration(time.Since(start).Seconds())

	return outcomes, nil
}

// dispatchSync invokes each subscriber in priority order on the calling
// goroutine. Completion order equals priority order.
func (d *Dispatcher) dispatchSync(ctx context.Context, e *Event, records []*Record, call handlerFunc) []Outcome {
	outcomes := make([]Outcome, 0, len(records))
	for _, rec := range records {
		o := d.invoke(ctx, rec, e, call)
		d.registry.RecordOutcome(rec.sub, o)
		d.metrics.observeOutcome(o)
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// dispatchAsync submits one task per subscriber (in priority order) to the
// bounded pool and waits for all of them up to the per-event deadline. A
// task still running at the deadline is recorded as a timeout failure; its
// goroutine is signalled through the context but never forcibly stopped.
func (d *Dispatcher) dispatchAsync(ctx context.Context, e *Event, records []*Record, call handlerFunc) []Outcome {
	dctx, cancel := context.WithTimeout(ctx, d.asyncTimeout)
	defer cancel()

	type indexed struct {
		i int
		o Outcome
	}
	// Buffered so abandoned tasks can deliver late results without leaking.
	results := make(chan indexed, len(records))

	for i, rec := range records {
		go func(i int, rec *Record) {
			if err := d.pool.Acquire(dctx, 1); err != nil {
				results <- indexed{i, Outcome{Subscriber: rec.name, TimedOut: true, Err: fmt.Errorf("waiting for worker: %w", err)}}
				return
			}
			defer d.pool.Release(1)
			results <- indexed{i, d.invoke(dctx, rec, e, call)}
		}(i, rec)
	}

	outcomes := make([]Outcome, len(records))
	seen := make([]bool, len(records))
	collected := 0

collect:
	for collected < len(records) {
		select {
		case r := <-results:
			outcomes[r.i] = r.o
			seen[r.i] = true
			collected++
		case <-dctx.Done():
			break collect
		}
	}

	if collected < len(records) {
		// Pick up anything that finished in the same instant the deadline
		// fired, then mark the rest as timed out.
	drain:
		for {
			select {
			case r := <-results:
				outcomes[r.i] = r.o
				seen[r.i] = true
			default:
				break drain
			}
		}
		for i, rec := range records {
			if seen[i] {
				continue
			}
			outcomes[i] = Outcome{
				Subscriber: rec.name,
				TimedOut:   true,
				Duration:   d.asyncTimeout,
				Err:        context.DeadlineExceeded,
			}
			d.logger.Warn("subscriber timed out",
				"subscriber", rec.name,
				"event_id", e.ID(),
				"timeout", d.asyncTimeout,
			)
		}
	}

	for i, rec := range records {
		d.registry.RecordOutcome(rec.sub, outcomes[i])
		d.metrics.observeOutcome(outcomes[i])
	}
	return outcomes
}

// invoke runs one subscriber handler with panic recovery. Errors and panics
// become failed outcomes; they never propagate to the dispatch caller.
func (d *Dispatcher) invoke(ctx context.Context, rec *Record, e *Event, call handlerFunc) (o Outcome) {
	o.Subscriber = rec.name
	start := time.Now()

	defer func() {
		o.Duration = time.Since(start)
		if r := recover(); r != nil {
			o.Success = false
			o.Err = fmt.Errorf("subscriber panicked: %v", r)
			d.logger.Error("subscriber panicked",
				"subscriber", rec.name,
				"event_id", e.ID(),
				"panic", r,
			)
		}
	}()

	if err := call(rec.sub, ctx, e); err != nil {
		o.Err = err
		if errors.Is(err, context.DeadlineExceeded) {
			o.TimedOut = true
		}
		d.logger.Error("subscriber failed",
			"subscriber", rec.name,
			"event_id", e.ID(),
			"kind", e.Kind().String(),
			"error", err,
		)
		return o
	}
	o.Success = true
	return o
}
