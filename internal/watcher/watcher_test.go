package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// startWatcher builds and starts a watcher over dir with tight timings.
func startWatcher(t *testing.T, dir string, opts Options) *Watcher {
	t.Helper()

	if opts.MoveGrace == 0 {
		opts.MoveGrace = 50 * time.Millisecond
	}
	if opts.WriteSettle == 0 {
		opts.WriteSettle = 30 * time.Millisecond
	}
	opts.Recursive = true

	w, err := New(testLogger(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { w.Stop() }) //nolint:errcheck // Test cleanup

	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx) //nolint:errcheck // Test goroutine

	return w
}

// collectEvents waits for n events or fails the test.
func collectEvents(t *testing.T, w *Watcher, n int, timeout time.Duration) []Event {
	t.Helper()

	events := make([]Event, 0, n)
	deadline := time.After(timeout)
	for len(events) < n {
		select {
		case ev := <-w.Events():
			events = append(events, ev)
		case err := <-w.Errors():
			t.Fatalf("unexpected watcher error: %v", err)
		case <-deadline:
			t.Fatalf("timeout: got %d of %d events: %+v", len(events), n, events)
		}
	}
	return events
}

// expectQuiet fails if any event arrives within the window.
func expectQuiet(t *testing.T, w *Watcher, window time.Duration) {
	t.Helper()

	select {
	case ev := <-w.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(window):
	}
}

func TestNew(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	err = w.Stop()
	assert.NoError(t, err)
}

func TestWatcher_Watch(t *testing.T) {
	w, err := New(testLogger(), Options{Recursive: true})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	err = w.Watch(tmpDir)
	assert.NoError(t, err)
}

func TestWatcher_WatchMissingPath(t *testing.T) {
	w, err := New(testLogger(), Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	err = w.Watch("/nonexistent/path/for/sure")
	assert.Error(t, err)
}

func TestWatcher_FileWrite(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, Options{})

	testFile := filepath.Join(tmpDir, "report.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("content"), 0o644))

	// A fresh write is a create followed by a completed-write modify.
	events := collectEvents(t, w, 2, 2*time.Second)
	assert.Equal(t, EventCreated, events[0].Type)
	assert.Equal(t, testFile, events[0].Path)
	assert.Equal(t, EventModified, events[1].Type)
	assert.Equal(t, testFile, events[1].Path)
	assert.False(t, events[0].Time.IsZero())
}

func TestWatcher_FileDeletion(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "doomed.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("content"), 0o644))

	w := startWatcher(t, tmpDir, Options{})

	require.NoError(t, os.Remove(testFile))

	events := collectEvents(t, w, 1, 2*time.Second)
	assert.Equal(t, EventDeleted, events[0].Type)
	assert.Equal(t, testFile, events[0].Path)
}

func TestWatcher_TempFilesAreReported(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, Options{})

	tempFile := filepath.Join(tmpDir, "report.txt.tmp")
	require.NoError(t, os.WriteFile(tempFile, []byte("draft"), 0o644))

	events := collectEvents(t, w, 2, 2*time.Second)
	assert.Equal(t, tempFile, events[0].Path)
}

func TestWatcher_IgnorePaths(t *testing.T) {
	tmpDir := t.TempDir()
	dataDir := filepath.Join(tmpDir, "fsintent-data")
	require.NoError(t, os.Mkdir(dataDir, 0o755))

	w := startWatcher(t, tmpDir, Options{IgnorePaths: []string{dataDir}})

	// Writes inside the ignored prefix stay invisible.
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "journal.vlog"), []byte("x"), 0o644))

	// A normal write still comes through.
	normalFile := filepath.Join(tmpDir, "normal.txt")
	require.NoError(t, os.WriteFile(normalFile, []byte("content"), 0o644))

	events := collectEvents(t, w, 2, 2*time.Second)
	for _, ev := range events {
		assert.Equal(t, normalFile, ev.Path)
	}
}

func TestWatcher_Unwatch(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, Options{})

	require.NoError(t, w.Unwatch(tmpDir))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "unseen.txt"), []byte("x"), 0o644))
	expectQuiet(t, w, 300*time.Millisecond)
}

func TestWatcher_UnwatchUnknownPath(t *testing.T) {
	tmpDir := t.TempDir()
	w := startWatcher(t, tmpDir, Options{})

	err := w.Unwatch("/never/watched")
	assert.Error(t, err)
}
