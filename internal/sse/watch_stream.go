package sse

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// WatchOperationEvent is sent to subscribers when an operation is detected
// under the watch root they follow.
type WatchOperationEvent struct {
	Timestamp time.Time               `json:"timestamp"`
	Operation *domain.OperationRecord `json:"operation"`
}

// WatchSubscriber represents a client following a single watch root.
type WatchSubscriber struct {
	WatchID   string
	EventChan chan WatchOperationEvent
	Done      chan struct{}
	CreatedAt time.Time
}

// WatchBroadcaster fans detected operations out to clients that follow a
// specific watch root. This is separate from the main SSE Manager because:
// 1. Subscribers want one watch root, not the whole event firehose
// 2. Delivery is keyed by watch ID, not connection
// 3. The set of watch roots is small and changes rarely.
type WatchBroadcaster struct {
	subscribers map[string][]*WatchSubscriber // watchID -> subscribers
	logger      *slog.Logger
	mu          sync.RWMutex
}

// NewWatchBroadcaster creates a new per-watch operation broadcaster.
func NewWatchBroadcaster(logger *slog.Logger) *WatchBroadcaster {
	return &WatchBroadcaster{
		subscribers: make(map[string][]*WatchSubscriber),
		logger:      logger,
	}
}

// Subscribe creates a new subscriber for a watch root's operations.
// The caller must call Unsubscribe when done to prevent leaks.
func (b *WatchBroadcaster) Subscribe(watchID string) *WatchSubscriber {
	sub := &WatchSubscriber{
		WatchID:   watchID,
		EventChan: make(chan WatchOperationEvent, 32),
		Done:      make(chan struct{}),
		CreatedAt: time.Now(),
	}

	b.mu.Lock()
	b.subscribers[watchID] = append(b.subscribers[watchID], sub)
	totalSubs := len(b.subscribers[watchID])
	b.mu.Unlock()

	b.logger.Debug("watch subscriber added",
		slog.String("watch_id", watchID),
		slog.Int("watch_subscribers", totalSubs))

	return sub
}

// Unsubscribe removes a subscriber and closes its channels. Safe to call
// after CloseWatch already disconnected the subscriber.
func (b *WatchBroadcaster) Unsubscribe(sub *WatchSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	found := false
	subs := b.subscribers[sub.WatchID]
	for i, s := range subs {
		if s == sub {
			b.subscribers[sub.WatchID] = append(subs[:i], subs[i+1:]...)
			found = true
			break
		}
	}

	// Clean up empty entries
	if len(b.subscribers[sub.WatchID]) == 0 {
		delete(b.subscribers, sub.WatchID)
	}

	// Only the call that removed the subscriber closes its channels.
	if !found {
		return
	}

	close(sub.Done)
	close(sub.EventChan)

	b.logger.Debug("watch subscriber removed",
		slog.String("watch_id", sub.WatchID),
		slog.Duration("duration", time.Since(sub.CreatedAt)))
}

// NotifyOperation delivers a detected operation to every subscriber of the
// owning watch root. Slow subscribers are skipped rather than blocked on.
func (b *WatchBroadcaster) NotifyOperation(watchID string, record *domain.OperationRecord) {
	event := WatchOperationEvent{
		Timestamp: time.Now(),
		Operation: record,
	}

	b.mu.RLock()
	subs := b.subscribers[watchID]
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var delivered, dropped int
	for _, sub := range subs {
		select {
		case sub.EventChan <- event:
			delivered++
		default:
			dropped++
		}
	}

	if dropped > 0 {
		b.logger.Warn("watch operation broadcast dropped events",
			slog.String("watch_id", watchID),
			slog.Int("delivered", delivered),
			slog.Int("dropped", dropped))
	}
}

// CloseWatch disconnects every subscriber of a watch root. Called when the
// watch is removed so streams do not outlive the thing they follow.
func (b *WatchBroadcaster) CloseWatch(watchID string) {
	b.mu.Lock()
	subs := b.subscribers[watchID]
	delete(b.subscribers, watchID)
	b.mu.Unlock()

	for _, sub := range subs {
		close(sub.Done)
		close(sub.EventChan)
	}

	if len(subs) > 0 {
		b.logger.Info("watch subscribers closed",
			slog.String("watch_id", watchID),
			slog.Int("count", len(subs)))
	}
}

// SubscriberCount returns the total number of active subscribers.
func (b *WatchBroadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscribers {
		count += len(subs)
	}
	return count
}
