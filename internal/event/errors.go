package event

import "fmt"

// InvalidEventError reports a construction attempt with a missing or invalid
// required field. It is returned by Builder.Build before any distribution
// happens, so downstream code never sees a partially built event.
type InvalidEventError struct {
	Field  string
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s %s", e.Field, e.Reason)
}

// AlreadyRegisteredError is returned when the same subscriber instance is
// registered twice. The first registration stays intact.
type AlreadyRegisteredError struct {
	Name string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("subscriber %q is already registered", e.Name)
}

// UnknownEventKindError is fatal to the dispatch call that encounters it:
// a kind outside the router's mapping means the event is structurally
// unsound, not that one subscriber misbehaved.
type UnknownEventKindError struct {
	Kind Kind
}

func (e *UnknownEventKindError) Error() string {
	return fmt.Sprintf("unknown event kind %q", e.Kind)
}
