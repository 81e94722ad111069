package event

import "time"

// SubscriberStats is a point-in-time snapshot of one subscriber's counters.
type SubscriberStats struct {
	Name          string
	Priority      int
	Active        bool
	RegisteredAt  time.Time
	Notifications uint64
	Failures      uint64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	LastNotified  time.Time
	LastFailure   time.Time
}

// Stats aggregates the dispatcher's event counters with the registry's
// per-subscriber snapshots.
type Stats struct {
	Events      uint64
	KindCounts  map[Kind]uint64
	Subscribers []SubscriberStats
}
