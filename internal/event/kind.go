package event

// Kind classifies a content lifecycle occurrence. The set is closed: the
// dispatcher routes every kind explicitly and fails dispatch for anything
// outside it.
type Kind string

const (
	KindCreated         Kind = "created"
	KindUpdated         Kind = "updated"
	KindPublished       Kind = "published"
	KindDeleted         Kind = "deleted"
	KindStatusChanged   Kind = "status_changed"
	KindMetadataUpdated Kind = "metadata_updated"
	KindQueried         Kind = "queried"
)

// kinds is the authoritative membership set for Valid.
var kinds = map[Kind]struct{}{
	KindCreated:         {},
	KindUpdated:         {},
	KindPublished:       {},
	KindDeleted:         {},
	KindStatusChanged:   {},
	KindMetadataUpdated: {},
	KindQueried:         {},
}

// Valid reports whether k is a member of the closed kind set.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Kinds returns all members of the kind set. Used by the statistics
// surface to seed per-kind counters.
func Kinds() []Kind {
	return []Kind{
		KindCreated,
		KindUpdated,
		KindPublished,
		KindDeleted,
		KindStatusChanged,
		KindMetadataUpdated,
		KindQueried,
	}
}
