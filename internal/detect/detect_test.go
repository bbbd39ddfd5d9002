package detect

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// Helpers shared across the package tests: terse batch construction with
// ascending timestamps, and the subsequence check every returned operation
// must satisfy.

var testBase = time.Date(2026, 5, 11, 10, 0, 0, 0, time.UTC)

func batchOf(events ...domain.Event) []domain.Event {
	for i := range events {
		events[i].Timestamp = testBase.Add(time.Duration(i) * 10 * time.Millisecond)
	}
	return events
}

func created(path string) domain.Event {
	return domain.Event{Kind: domain.EventCreated, Path: path}
}

func modified(path string) domain.Event {
	return domain.Event{Kind: domain.EventModified, Path: path}
}

func deleted(path string) domain.Event {
	return domain.Event{Kind: domain.EventDeleted, Path: path}
}

func moved(src, dst string) domain.Event {
	return domain.Event{Kind: domain.EventMoved, Path: src, DestPath: dst}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// requireSubsequence fails unless matched is an order-preserving subsequence
// of batch.
func requireSubsequence(t *testing.T, batch, matched []domain.Event) {
	t.Helper()
	require.NotEmpty(t, matched)

	i := 0
	for _, m := range matched {
		found := false
		for i < len(batch) {
			if batch[i].Equal(m) {
				found = true
				i++
				break
			}
			i++
		}
		require.True(t, found, "matched event %v %s not found in batch order", m.Kind, m.Path)
	}
}

// requireInvariants checks the structural guarantees every operation carries.
func requireInvariants(t *testing.T, batch []domain.Event, op *domain.FileOperation) {
	t.Helper()
	require.NotNil(t, op)
	require.Contains(t, op.AffectedPaths, op.PrimaryPath)
	requireSubsequence(t, batch, op.MatchedEvents)
}
