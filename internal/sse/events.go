// Package sse implements Server-Sent Events for streaming detected
// operations and watch changes to connected clients.
package sse

import (
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventOperationDetected fires when a batch classifies into an
	// operation and lands in the journal.
	EventOperationDetected EventType = "operation.detected"

	// EventWatchAdded fires when a new watch root starts being monitored.
	EventWatchAdded EventType = "watch.added"
	// EventWatchRemoved fires when a watch root is removed.
	EventWatchRemoved EventType = "watch.removed"
	// EventWatchToggled fires when a watch root is paused or resumed.
	EventWatchToggled EventType = "watch.toggled"

	// EventJournalPruned fires when retention removes old journal records.
	EventJournalPruned EventType = "journal.pruned"

	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"
)

// Event represents an SSE event to be sent to clients.
// The Data field contains the event payload as a JSON object for direct
// deserialization.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`
}

// OperationEventData is the data payload for operation.detected events.
// The full journal record is included so clients can render the detection
// without a follow-up request.
type OperationEventData struct {
	Operation *domain.OperationRecord `json:"operation"`
}

// WatchEventData is the data payload for watch.added and watch.toggled
// events.
type WatchEventData struct {
	Watch *domain.WatchRoot `json:"watch"`
}

// WatchRemovedEventData is the data payload for watch.removed events.
type WatchRemovedEventData struct {
	RemovedAt time.Time `json:"removed_at"`
	WatchID   string    `json:"watch_id"`
	Path      string    `json:"path"`
}

// JournalPrunedEventData is the data payload for journal.pruned events.
type JournalPrunedEventData struct {
	Cutoff  time.Time `json:"cutoff"`
	Removed int       `json:"removed"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// NewOperationDetectedEvent creates an operation.detected event.
func NewOperationDetectedEvent(rec *domain.OperationRecord) Event {
	return Event{
		Type:      EventOperationDetected,
		Data:      OperationEventData{Operation: rec},
		Timestamp: time.Now(),
	}
}

// NewWatchAddedEvent creates a watch.added event.
func NewWatchAddedEvent(w *domain.WatchRoot) Event {
	return Event{
		Type:      EventWatchAdded,
		Data:      WatchEventData{Watch: w},
		Timestamp: time.Now(),
	}
}

// NewWatchToggledEvent creates a watch.toggled event.
func NewWatchToggledEvent(w *domain.WatchRoot) Event {
	return Event{
		Type:      EventWatchToggled,
		Data:      WatchEventData{Watch: w},
		Timestamp: time.Now(),
	}
}

// NewWatchRemovedEvent creates a watch.removed event.
func NewWatchRemovedEvent(watchID, path string) Event {
	return Event{
		Type: EventWatchRemoved,
		Data: WatchRemovedEventData{
			WatchID:   watchID,
			Path:      path,
			RemovedAt: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

// NewJournalPrunedEvent creates a journal.pruned event.
func NewJournalPrunedEvent(removed int, cutoff time.Time) Event {
	return Event{
		Type: EventJournalPruned,
		Data: JournalPrunedEventData{
			Removed: removed,
			Cutoff:  cutoff,
		},
		Timestamp: time.Now(),
	}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return Event{
		Type: EventHeartbeat,
		Data: HeartbeatEventData{
			ServerTime: time.Now(),
		},
		Timestamp: time.Now(),
	}
}
