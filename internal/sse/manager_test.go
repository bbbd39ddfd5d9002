package sse

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager(t *testing.T) (*Manager, context.CancelFunc) {
	t.Helper()

	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go m.Start(ctx)

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
		defer shutdownCancel()
		m.Shutdown(shutdownCtx)
		cancel()
	})

	return m, cancel
}

func TestManager_ConnectDisconnect(t *testing.T) {
	m, _ := testManager(t)

	client, err := m.Connect()
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NotEmpty(t, client.ID)
	assert.Equal(t, 1, m.ClientCount())

	m.Disconnect(client.ID)
	assert.Equal(t, 0, m.ClientCount())

	// Disconnecting twice must not panic.
	m.Disconnect(client.ID)
}

func TestManager_BroadcastReachesAllClients(t *testing.T) {
	m, _ := testManager(t)

	first, err := m.Connect()
	require.NoError(t, err)
	second, err := m.Connect()
	require.NoError(t, err)

	m.Emit(NewJournalPrunedEvent(3, time.Now()))

	for _, client := range []*Client{first, second} {
		select {
		case event := <-client.EventChan:
			assert.Equal(t, EventJournalPruned, event.Type)
			data, ok := event.Data.(JournalPrunedEventData)
			require.True(t, ok)
			assert.Equal(t, 3, data.Removed)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast")
		}
	}
}

func TestManager_EmitIgnoresNonEvents(t *testing.T) {
	m, _ := testManager(t)

	client, err := m.Connect()
	require.NoError(t, err)

	// Emit accepts any to satisfy the store's emitter interface; values
	// that are not Events are dropped.
	m.Emit("not an event")
	m.Emit(42)

	select {
	case event := <-client.EventChan:
		t.Fatalf("unexpected event delivered: %v", event.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_EmitAfterShutdownIsSafe(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)

	// Must not panic on the closed channel.
	m.Emit(NewHeartbeatEvent())
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	m := NewManager(slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	client, err := m.Connect()
	require.NoError(t, err)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	m.Shutdown(shutdownCtx)

	select {
	case <-client.Done:
	case <-time.After(time.Second):
		t.Fatal("client was not closed on shutdown")
	}
	assert.Equal(t, 0, m.ClientCount())
}

func TestWatchBroadcaster_DeliversToMatchingWatch(t *testing.T) {
	b := NewWatchBroadcaster(slog.New(slog.DiscardHandler))

	followed := b.Subscribe("watch_1")
	defer b.Unsubscribe(followed)
	other := b.Subscribe("watch_2")
	defer b.Unsubscribe(other)

	b.NotifyOperation("watch_1", nil)

	select {
	case event := <-followed.EventChan:
		assert.False(t, event.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	select {
	case <-other.EventChan:
		t.Fatal("event delivered to wrong watch")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatchBroadcaster_CloseWatchDisconnectsSubscribers(t *testing.T) {
	b := NewWatchBroadcaster(slog.New(slog.DiscardHandler))

	sub := b.Subscribe("watch_1")
	require.Equal(t, 1, b.SubscriberCount())

	b.CloseWatch("watch_1")
	assert.Equal(t, 0, b.SubscriberCount())

	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("subscriber was not closed")
	}

	// Unsubscribe after CloseWatch must not panic on closed channels.
	b.Unsubscribe(sub)
}
