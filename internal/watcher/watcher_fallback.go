//go:build !linux

package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackBackend implements Backend using fsnotify.
//
// fsnotify exposes no rename cookies, so moves are reconstructed
// heuristically: a Rename (source endpoint) is held for MoveGrace and
// paired with the next Create in the tree. Write bursts are coalesced
// into a single modify per settle window.
type fallbackBackend struct {
	logger  *slog.Logger
	opts    Options
	watcher *fsnotify.Watcher

	pending map[string]*pendingWrite // path -> write burst being coalesced
	renames []*pendingRename         // rename sources awaiting destinations
	mu      sync.Mutex               // protects pending and renames

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// pendingWrite tracks a file receiving a burst of writes.
type pendingWrite struct {
	path  string
	timer *time.Timer
}

// pendingRename is a rename source waiting for its destination.
type pendingRename struct {
	path  string
	timer *time.Timer
}

// newFallbackBackend creates a fallback backend using fsnotify
func newFallbackBackend(logger *slog.Logger, opts Options) (*fallbackBackend, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &fallbackBackend{
		logger:  logger,
		opts:    opts,
		watcher: watcher,
		pending: make(map[string]*pendingWrite),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored
func (b *fallbackBackend) Watch(path string) error {
	path = filepath.Clean(path)

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	if info.IsDir() {
		return b.watchDir(path)
	}
	return b.watcher.Add(filepath.Dir(path))
}

// Unwatch removes a root and every watch beneath it
func (b *fallbackBackend) Unwatch(path string) error {
	path = filepath.Clean(path)
	prefix := path + string(filepath.Separator)

	found := false
	for _, p := range b.watcher.WatchList() {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		if err := b.watcher.Remove(p); err != nil {
			b.logger.Warn("failed to remove watch", "path", p, "error", err)
			continue
		}
		found = true
	}
	if !found {
		return fmt.Errorf("not watching %s", path)
	}
	return nil
}

// watchDir watches a directory, recursively when configured
func (b *fallbackBackend) watchDir(path string) error {
	if !b.opts.Recursive {
		return b.watcher.Add(path)
	}

	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil
		}

		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !info.IsDir() {
			return nil
		}

		if err := b.watcher.Add(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
			return nil
		}

		b.logger.Debug("added watch", "path", p)
		return nil
	})
}

// Start begins watching for events
func (b *fallbackBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.processEvents(ctx)

	<-ctx.Done()
	return nil
}

// processEvents processes fsnotify events
func (b *fallbackBackend) processEvents(ctx context.Context) {
	defer b.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			b.handleFsnotifyEvent(event)
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.errors <- err
		}
	}
}

// handleFsnotifyEvent maps one fsnotify event onto the raw event model
func (b *fallbackBackend) handleFsnotifyEvent(event fsnotify.Event) {
	path := event.Name

	// Skip ignored paths
	if b.opts.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		if src, ok := b.takeRenameSource(); ok {
			// Pair with the oldest held rename source.
			b.emitEvent(Event{Time: time.Now(), Type: EventMoved, Path: src, DestPath: path})
			return
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if b.opts.Recursive {
				if err := b.watchDir(path); err != nil {
					b.logger.Warn("failed to watch new directory", "path", path, "error", err)
				}
			}
		}
		b.emitEvent(Event{Time: time.Now(), Type: EventCreated, Path: path})

	case event.Op&fsnotify.Remove != 0:
		b.cancelPendingWrite(path)
		b.emitEvent(Event{Time: time.Now(), Type: EventDeleted, Path: path})

	case event.Op&fsnotify.Rename != 0:
		// fsnotify reports only the source endpoint. Hold it and wait
		// for the destination's Create.
		b.cancelPendingWrite(path)
		b.stashRenameSource(path)

	case event.Op&fsnotify.Write != 0:
		b.extendWriteBurst(path)
	}
}

// stashRenameSource holds a rename source for pairing
func (b *fallbackBackend) stashRenameSource(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pr := &pendingRename{path: path}
	pr.timer = time.AfterFunc(b.opts.MoveGrace, func() {
		b.expireRenameSource(pr)
	})
	b.renames = append(b.renames, pr)
}

// takeRenameSource pops the oldest held rename source, if any
func (b *fallbackBackend) takeRenameSource() (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.renames) == 0 {
		return "", false
	}
	pr := b.renames[0]
	b.renames = b.renames[1:]
	pr.timer.Stop()
	return pr.path, true
}

// expireRenameSource reports an unpaired rename source as a delete
func (b *fallbackBackend) expireRenameSource(pr *pendingRename) {
	b.mu.Lock()
	for i, held := range b.renames {
		if held == pr {
			b.renames = append(b.renames[:i], b.renames[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	b.emitEvent(Event{Time: time.Now(), Type: EventDeleted, Path: pr.path})
}

// extendWriteBurst starts or extends the coalescing window for a path
func (b *fallbackBackend) extendWriteBurst(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pw, exists := b.pending[path]; exists {
		pw.timer.Reset(b.opts.WriteSettle)
		return
	}

	pw := &pendingWrite{path: path}
	pw.timer = time.AfterFunc(b.opts.WriteSettle, func() {
		b.flushWriteBurst(path)
	})
	b.pending[path] = pw
}

// flushWriteBurst emits one modify for a settled write burst
func (b *fallbackBackend) flushWriteBurst(path string) {
	b.mu.Lock()
	_, exists := b.pending[path]
	if exists {
		delete(b.pending, path)
	}
	b.mu.Unlock()

	if !exists {
		return
	}

	// The Remove op reports deletions; a vanished file just drops its burst.
	if _, err := os.Stat(path); err != nil {
		return
	}

	b.emitEvent(Event{Time: time.Now(), Type: EventModified, Path: path})
}

// cancelPendingWrite drops a coalescing window for a path
func (b *fallbackBackend) cancelPendingWrite(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pw, exists := b.pending[path]; exists {
		pw.timer.Stop()
		delete(b.pending, path)
	}
}

// emitEvent sends an event to the events channel
func (b *fallbackBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel
func (b *fallbackBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel
func (b *fallbackBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher
func (b *fallbackBackend) Stop() error {
	close(b.done)

	// Cancel all pending timers
	b.mu.Lock()
	for _, pw := range b.pending {
		pw.timer.Stop()
	}
	clear(b.pending)
	for _, pr := range b.renames {
		pr.timer.Stop()
	}
	b.renames = nil
	b.mu.Unlock()

	// Close fsnotify watcher
	b.watcher.Close()

	// Wait for goroutines
	b.wg.Wait()

	close(b.events)
	close(b.errors)

	return nil
}

// newLinuxBackend is a stub that should never be called on non-Linux platforms
// It exists only to satisfy the compiler when watcher.go references it
func newLinuxBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("Linux backend not available on this platform")
}
