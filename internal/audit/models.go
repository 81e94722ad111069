package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is one immutable audit trail line. Keep it transport-agnostic so
// stores and sinks can fan out.
type Entry struct {
	ID         uuid.UUID
	EventID    uuid.UUID
	Kind       string
	ContentID  uuid.UUID
	Slug       string
	Principal  string
	Source     string
	Reason     string
	SoftDelete bool
	Previous   map[string]any
	OccurredAt time.Time
	RecordedAt time.Time
}
