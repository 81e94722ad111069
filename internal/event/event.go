package event

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record of one content lifecycle occurrence. It is
// built once by the caller issuing a mutation, handed to the dispatcher, and
// only ever read after that. The core never stores events; a subscriber that
// needs durability persists its own derived record.
//
// All collection accessors return copies, so a subscriber mutating the
// returned map or slice never affects the event other subscribers see.
type Event struct {
	id          uuid.UUID
	kind        Kind
	occurredAt  time.Time
	principal   string
	payload     any
	payloadType string
	source      string
	sessionID   string
	metadata    map[string]any
	previous    map[string]any
	changed     []string
	reason      string
	publishAt   *time.Time
	softDelete  bool
	context     map[string]string
}

func (e *Event) ID() uuid.UUID        { return e.id }
func (e *Event) Kind() Kind           { return e.kind }
func (e *Event) OccurredAt() time.Time { return e.occurredAt }
func (e *Event) Principal() string    { return e.principal }
func (e *Event) Payload() any         { return e.payload }
func (e *Event) Source() string       { return e.source }
func (e *Event) SessionID() string    { return e.sessionID }
func (e *Event) Reason() string       { return e.reason }
func (e *Event) SoftDelete() bool     { return e.softDelete }

// PayloadType is the string the registry matches against subscriber filters.
// It is derived from the payload's dynamic type at build time.
func (e *Event) PayloadType() string { return e.payloadType }

// PublishAt returns the future-dated publication time, if any.
func (e *Event) PublishAt() (time.Time, bool) {
	if e.publishAt == nil {
		return time.Time{}, false
	}
	return *e.publishAt, true
}

// Metadata returns a copy of the event metadata.
func (e *Event) Metadata() map[string]any {
	return copyAnyMap(e.metadata)
}

// Previous returns a copy of the field→prior-value map carried by update
// events.
func (e *Event) Previous() map[string]any {
	return copyAnyMap(e.previous)
}

// ChangedFields returns a sorted copy of the changed-field set.
func (e *Event) ChangedFields() []string {
	if len(e.changed) == 0 {
		return nil
	}
	out := append([]string{}, e.changed...)
	sort.Strings(out)
	return out
}

// Context returns a copy of the free-form string context map.
func (e *Event) Context() map[string]string {
	if len(e.context) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.context))
	for k, v := range e.context {
		out[k] = v
	}
	return out
}

func copyAnyMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Builder assembles an Event. Optional fields accumulate through the
// chainable setters; Build validates the required ones and copies every
// collection so later mutation of the inputs cannot reach the event.
type Builder struct {
	kind       Kind
	principal  string
	payload    any
	payloadSet bool
	source     string
	sessionID  string
	metadata   map[string]any
	previous   map[string]any
	changed    []string
	reason     string
	publishAt  *time.Time
	softDelete bool
	context    map[string]string
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Kind(k Kind) *Builder { b.kind = k; return b }

func (b *Builder) Principal(p string) *Builder { b.principal = p; return b }

func (b *Builder) Payload(p any) *Builder {
	b.payload = p
	b.payloadSet = true
	return b
}

func (b *Builder) Source(s string) *Builder { b.source = s; return b }

func (b *Builder) SessionID(id string) *Builder { b.sessionID = id; return b }

func (b *Builder) Reason(r string) *Builder { b.reason = r; return b }

func (b *Builder) PublishAt(t time.Time) *Builder { b.publishAt = &t; return b }

func (b *Builder) SoftDelete(v bool) *Builder { b.softDelete = v; return b }

// Metadatum records one metadata entry, allocating lazily.
func (b *Builder) Metadatum(key string, value any) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]any)
	}
	b.metadata[key] = value
	return b
}

// Previous records the prior value of a field mutated by an update.
func (b *Builder) Previous(field string, value any) *Builder {
	if b.previous == nil {
		b.previous = make(map[string]any)
	}
	b.previous[field] = value
	b.changed = appendUnique(b.changed, field)
	return b
}

// Changed marks a field as mutated without recording its prior value.
func (b *Builder) Changed(fields ...string) *Builder {
	for _, f := range fields {
		b.changed = appendUnique(b.changed, f)
	}
	return b
}

// ContextValue records one entry of the free-form string context map.
func (b *Builder) ContextValue(key, value string) *Builder {
	if b.context == nil {
		b.context = make(map[string]string)
	}
	b.context[key] = value
	return b
}

func appendUnique(fields []string, f string) []string {
	for _, existing := range fields {
		if existing == f {
			return fields
		}
	}
	return append(fields, f)
}

// Build validates the required fields and produces the immutable event.
// Payload, kind, and principal are mandatory; a nil payload is rejected
// even when explicitly set.
func (b *Builder) Build() (*Event, error) {
	if b.kind == "" {
		return nil, &InvalidEventError{Field: "kind", Reason: "is required"}
	}
	if !b.kind.Valid() {
		return nil, &InvalidEventError{Field: "kind", Reason: fmt.Sprintf("%q is not a known kind", b.kind)}
	}
	if !b.payloadSet || b.payload == nil {
		return nil, &InvalidEventError{Field: "payload", Reason: "is required"}
	}
	if b.principal == "" {
		return nil, &InvalidEventError{Field: "principal", Reason: "is required"}
	}

	e := &Event{
		id:          uuid.New(),
		kind:        b.kind,
		occurredAt:  time.Now(),
		principal:   b.principal,
		payload:     b.payload,
		payloadType: fmt.Sprintf("%T", b.payload),
		source:      b.source,
		sessionID:   b.sessionID,
		metadata:    copyAnyMap(b.metadata),
		previous:    copyAnyMap(b.previous),
		reason:      b.reason,
		softDelete:  b.softDelete,
	}
	if len(b.changed) > 0 {
		e.changed = append([]string{}, b.changed...)
	}
	if b.publishAt != nil {
		t := *b.publishAt
		e.publishAt = &t
	}
	if len(b.context) > 0 {
		e.context = make(map[string]string, len(b.context))
		for k, v := range b.context {
			e.context[k] = v
		}
	}
	return e, nil
}

// NewCreated builds a minimal created event. The convenience constructors
// cover the four primary kinds so call sites in the service layer stay
// short; anything richer goes through the builder.
func NewCreated(payload any, principal string) (*Event, error) {
	return NewBuilder().Kind(KindCreated).Payload(payload).Principal(principal).Build()
}

// NewUpdated builds an updated event carrying the prior values of the
// mutated fields.
func NewUpdated(payload any, principal string, previous map[string]any) (*Event, error) {
	b := NewBuilder().Kind(KindUpdated).Payload(payload).Principal(principal)
	for field, value := range previous {
		b.Previous(field, value)
	}
	return b.Build()
}

// NewPublished builds a published event.
func NewPublished(payload any, principal string) (*Event, error) {
	return NewBuilder().Kind(KindPublished).Payload(payload).Principal(principal).Build()
}

// NewDeleted builds a deleted event; soft marks a temporary deletion.
func NewDeleted(payload any, principal string, soft bool) (*Event, error) {
	return NewBuilder().Kind(KindDeleted).Payload(payload).Principal(principal).SoftDelete(soft).Build()
}
