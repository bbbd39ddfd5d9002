package domain

import (
	"fmt"
	"time"
)

// EventKind represents the kind of filesystem event.
type EventKind int

const (
	// EventCreated is a new file appearing at a path.
	EventCreated EventKind = iota
	// EventModified is a content or metadata change to an existing file.
	EventModified
	// EventDeleted is a file disappearing from a path.
	EventDeleted
	// EventMoved is a rename; the event carries both the source and the destination.
	EventMoved
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize as their
// names rather than bare integers.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *EventKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "created":
		*k = EventCreated
	case "modified":
		*k = EventModified
	case "deleted":
		*k = EventDeleted
	case "moved":
		*k = EventMoved
	default:
		return fmt.Errorf("unknown event kind %q", text)
	}
	return nil
}

// Event is one observed filesystem notification, already correlated into a
// batch by the time it reaches the detection engine. Events are immutable
// value types; batches are ordered by Timestamp ascending.
type Event struct {
	// Timestamp is the capture instant; it orders events within a batch.
	Timestamp time.Time `json:"timestamp"`

	// Path is the absolute path the event concerns. For a moved event this
	// is the source path.
	Path string `json:"path"`

	// DestPath is the destination path; set only for moved events.
	DestPath string `json:"dest_path,omitempty"`

	// Kind is what happened at the path.
	Kind EventKind `json:"kind"`
}

// FinalPath returns the path the file ends up at: the destination for a moved
// event, the path itself otherwise.
func (e Event) FinalPath() string {
	if e.Kind == EventMoved && e.DestPath != "" {
		return e.DestPath
	}
	return e.Path
}

// Equal reports whether two events are identical, including timestamps.
func (e Event) Equal(other Event) bool {
	return e.Kind == other.Kind &&
		e.Path == other.Path &&
		e.DestPath == other.DestPath &&
		e.Timestamp.Equal(other.Timestamp)
}
