package watcher

import "time"

// EventType represents the type of raw file system event.
type EventType int

const (
	// EventCreated is emitted when a file or directory appears.
	EventCreated EventType = iota
	// EventModified is emitted when a completed write is observed.
	EventModified
	// EventDeleted is emitted when a file or directory is removed.
	EventDeleted
	// EventMoved is emitted when a rename is observed with both endpoints
	// inside the watched tree.
	EventMoved
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
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

// Event is a raw file system event as captured by a backend.
// Events are reported unfiltered and unsettled; grouping them into
// batches is the correlator's job, not the watcher's.
type Event struct {
	// Time is when the backend observed the event.
	Time time.Time

	// Path is the affected path. For moves it is the source.
	Path string

	// DestPath is the rename destination (move events only).
	DestPath string

	// Type is the kind of event (created, modified, deleted, moved).
	Type EventType
}
