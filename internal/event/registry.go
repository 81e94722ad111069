package event

import (
	"sort"
	"sync"
)

// Registry is the thread-safe membership store for subscribers. Lookups take
// the read lock so concurrent dispatches do not block each other; register
// and unregister take the write lock and are linearizable.
//
// Identity is the subscriber instance itself: registering the same instance
// twice fails, two distinct instances of the same type are two members.
type Registry struct {
	mu      sync.RWMutex
	records map[Subscriber]*Record
	nextSeq uint64
}

func NewRegistry() *Registry {
	return &Registry{records: make(map[Subscriber]*Record)}
}

// Register adds a subscriber, capturing its name, priority, and filter once.
// Priority is immutable after registration; a subscriber whose Priority
// method would later return something else keeps its registered value.
func (r *Registry) Register(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[sub]; ok {
		return &AlreadyRegisteredError{Name: existing.name}
	}

	rec := newRecord(sub, r.nextSeq)
	r.nextSeq++
	r.records[sub] = rec
	return nil
}

// Unregister removes a subscriber and reports whether a removal occurred.
// In-flight async notifications already dispatched to this subscriber are
// allowed to finish; their outcomes are dropped, not recorded.
func (r *Registry) Unregister(sub Subscriber) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.records[sub]; !ok {
		return false
	}
	delete(r.records, sub)
	return true
}

// IsRegistered reports whether the subscriber instance is currently a member.
func (r *Registry) IsRegistered(sub Subscriber) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[sub]
	return ok
}

// Count returns the number of registered subscribers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// SetActive flips a subscriber's active flag and reports whether the
// subscriber was found. Inactive subscribers stay registered but are skipped
// by InterestedFor. Failure counters never flip this flag automatically;
// deactivating a chronically failing subscriber is the caller's decision.
func (r *Registry) SetActive(sub Subscriber, active bool) bool {
	r.mu.RLock()
	rec, ok := r.records[sub]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	rec.active.Store(active)
	return true
}

// InterestedFor returns the active subscribers whose filter accepts the
// payload type, sorted ascending by priority with a stable tie-break on
// registration order. The returned slice is a copy.
func (r *Registry) InterestedFor(payloadType string) []*Record {
	r.mu.RLock()
	interested := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		if rec.active.Load() && rec.filter(payloadType) {
			interested = append(interested, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(interested, func(i, j int) bool {
		if interested[i].priority != interested[j].priority {
			return interested[i].priority < interested[j].priority
		}
		return interested[i].seq < interested[j].seq
	})
	return interested
}

// RecordOutcome folds one notification outcome into the subscriber's
// counters. Outcomes for subscribers unregistered mid-flight are dropped.
func (r *Registry) RecordOutcome(sub Subscriber, o Outcome) {
	r.mu.RLock()
	rec, ok := r.records[sub]
	r.mu.RUnlock()
	if !ok {
		return
	}
	rec.observe(o)
}

// SubscriberStats returns snapshots for every registered subscriber, sorted
// by priority then registration order.
func (r *Registry) SubscriberStats() []SubscriberStats {
	r.mu.RLock()
	recs := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		recs = append(recs, rec)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].priority != recs[j].priority {
			return recs[i].priority < recs[j].priority
		}
		return recs[i].seq < recs[j].seq
	})

	out := make([]SubscriberStats, len(recs))
	for i, rec := range recs {
		out[i] = rec.stats()
	}
	return out
}
