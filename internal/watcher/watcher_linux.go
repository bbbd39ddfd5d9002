//go:build linux

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
	"unsafe"

	"golang.org/x/sys/unix"
)

// linuxBackend implements Backend using Linux inotify.
//
// Rename cookies pair IN_MOVED_FROM with IN_MOVED_TO so a rename inside
// the watched tree surfaces as a single EventMoved instead of a
// delete/create pair. A source whose destination never arrives (the file
// was moved out of the tree) degrades to EventDeleted after MoveGrace.
type linuxBackend struct {
	logger  *slog.Logger
	watches map[string]int
	wdPaths map[int]string
	pending map[uint32]*pendingMove
	events  chan Event
	errors  chan error
	done    chan struct{}
	opts    Options
	wg      sync.WaitGroup
	fd      int
	mu      sync.RWMutex
	pmu     sync.Mutex
}

// pendingMove is a rename source waiting for its destination.
type pendingMove struct {
	timer *time.Timer
	path  string
	isDir bool
}

// newLinuxBackend creates a new Linux-specific file watcher backend.
func newLinuxBackend(logger *slog.Logger, opts Options) (*linuxBackend, error) {
	// Initialize inotify.
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inotify: %w", err)
	}

	return &linuxBackend{
		logger:  logger,
		opts:    opts,
		fd:      fd,
		watches: make(map[string]int),
		wdPaths: make(map[int]string),
		pending: make(map[uint32]*pendingMove),
		events:  make(chan Event, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch adds a path to be monitored.
func (b *linuxBackend) Watch(path string) error {
	// Clean the path.
	path = filepath.Clean(path)

	// Check if path exists.
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat path: %w", err)
	}

	// Add watch for this path.
	if info.IsDir() {
		return b.watchDir(path)
	}
	return b.watchFile(path)
}

// Unwatch removes a root and every watch beneath it.
func (b *linuxBackend) Unwatch(path string) error {
	path = filepath.Clean(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := path + string(filepath.Separator)
	found := false
	for p, wd := range b.watches {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		//nolint:gosec // G115: wd is always a small non-negative int from inotify
		_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))
		delete(b.watches, p)
		delete(b.wdPaths, wd)
		found = true
	}
	if !found {
		return fmt.Errorf("not watching %s", path)
	}
	return nil
}

// watchDir watches a directory, recursively when configured.
func (b *linuxBackend) watchDir(path string) error {
	if !b.opts.Recursive {
		return b.addWatch(path)
	}

	// Walk the directory tree.
	return filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			b.logger.Warn("failed to access path", "path", p, "error", err)
			return nil // Continue walking
		}

		// Skip ignored paths.
		if b.opts.shouldIgnore(p) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Only watch directories.
		if !info.IsDir() {
			return nil
		}

		// Add inotify watch.
		if err := b.addWatch(p); err != nil {
			b.logger.Error("failed to add watch", "path", p, "error", err)
			return nil // Continue walking
		}

		return nil
	})
}

// watchFile watches a single file by watching its parent directory.
func (b *linuxBackend) watchFile(path string) error {
	dir := filepath.Dir(path)
	return b.addWatch(dir)
}

// addWatch adds an inotify watch for a path.
func (b *linuxBackend) addWatch(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Check if already watching.
	if _, exists := b.watches[path]; exists {
		return nil
	}

	// IN_CREATE: File or directory created.
	// IN_CLOSE_WRITE: File closed after writing. One event per completed
	//   write session keeps kernel-level write bursts from looking like
	//   repeated edits.
	// IN_DELETE: File/directory deleted from within watched directory.
	// IN_DELETE_SELF: Watched directory itself was deleted.
	// IN_MOVED_FROM / IN_MOVED_TO: Rename endpoints, paired by cookie.
	mask := unix.IN_CREATE | unix.IN_CLOSE_WRITE | unix.IN_DELETE | unix.IN_DELETE_SELF | unix.IN_MOVED_FROM | unix.IN_MOVED_TO

	wd, err := unix.InotifyAddWatch(b.fd, path, uint32(mask))
	if err != nil {
		return fmt.Errorf("inotify_add_watch failed: %w", err)
	}

	b.watches[path] = wd
	b.wdPaths[wd] = path
	b.logger.Debug("added watch", "path", path, "wd", wd)

	return nil
}

// removeWatch removes an inotify watch for a path.
func (b *linuxBackend) removeWatch(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wd, exists := b.watches[path]
	if !exists {
		return
	}

	// Remove from inotify (ignore errors, directory may already be gone).
	//nolint:gosec // G115: wd is always a small non-negative int from inotify
	_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))

	delete(b.watches, path)
	delete(b.wdPaths, wd)
	b.logger.Debug("removed watch", "path", path, "wd", wd)
}

// Start begins watching for events.
func (b *linuxBackend) Start(ctx context.Context) error {
	b.wg.Add(1)
	go b.readEvents(ctx)

	// Wait for context cancellation or done signal.
	<-ctx.Done()
	return nil
}

// readEvents reads events from inotify.
func (b *linuxBackend) readEvents(ctx context.Context) {
	defer b.wg.Done()

	buf := make([]byte, 64*1024)
	fds := []unix.PollFd{{Fd: int32(b.fd), Events: unix.POLLIN}}

	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		default:
		}

		// Poll with a timeout so shutdown is noticed without burning CPU
		// on the non-blocking fd.
		ready, err := unix.Poll(fds, 200)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			b.errors <- fmt.Errorf("failed to poll inotify: %w", err)
			return
		}
		if ready == 0 {
			continue
		}

		n, err := unix.Read(b.fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			b.errors <- fmt.Errorf("failed to read inotify events: %w", err)
			return
		}

		if n < unix.SizeofInotifyEvent {
			continue // Not enough data
		}

		b.parseEvents(buf[:n])
	}
}

// parseEvents parses raw inotify events.
func (b *linuxBackend) parseEvents(buf []byte) {
	offset := 0
	for offset < len(buf) {
		//nolint:gosec // G103: Legitimate use of unsafe for syscall interface with inotify
		event := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		offset += unix.SizeofInotifyEvent + int(event.Len)

		if event.Mask&unix.IN_Q_OVERFLOW != 0 {
			b.logger.Warn("inotify queue overflow, events were dropped")
			continue
		}

		// Get the path for this watch descriptor.
		b.mu.RLock()
		dir, ok := b.wdPaths[int(event.Wd)]
		b.mu.RUnlock()

		if !ok {
			continue
		}

		// Get the full path.
		name := ""
		if event.Len > 0 {
			nameBytes := buf[offset-int(event.Len) : offset]
			name = string(nameBytes[:clen(nameBytes)])
		}

		path := filepath.Join(dir, name)

		// Process the event.
		b.processEvent(path, event.Mask, event.Cookie)
	}
}

// processEvent processes a single inotify event.
func (b *linuxBackend) processEvent(path string, mask, cookie uint32) {
	// Skip ignored paths.
	if b.opts.shouldIgnore(path) {
		return
	}

	isDir := mask&unix.IN_ISDIR != 0

	switch {
	case mask&unix.IN_CREATE != 0:
		if isDir && b.opts.Recursive {
			// New directory, watch it before reporting so nothing
			// created inside slips past.
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("failed to watch new directory", "path", path, "error", err)
			}
		}
		b.emitEvent(Event{Time: time.Now(), Type: EventCreated, Path: path})

	case mask&unix.IN_CLOSE_WRITE != 0:
		b.emitEvent(Event{Time: time.Now(), Type: EventModified, Path: path})

	case mask&unix.IN_DELETE != 0:
		b.emitEvent(Event{Time: time.Now(), Type: EventDeleted, Path: path})

	case mask&unix.IN_DELETE_SELF != 0:
		// The parent's IN_DELETE already reported this removal unless
		// the path is a watch root with no watched parent.
		if b.isRoot(path) {
			b.emitEvent(Event{Time: time.Now(), Type: EventDeleted, Path: path})
		}
		b.removeWatch(path)

	case mask&unix.IN_MOVED_FROM != 0:
		b.stashMove(cookie, path, isDir)

	case mask&unix.IN_MOVED_TO != 0:
		b.resolveMove(cookie, path, isDir)
	}
}

// isRoot reports whether path has no watched parent directory.
func (b *linuxBackend) isRoot(path string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, parentWatched := b.watches[filepath.Dir(path)]
	return !parentWatched
}

// stashMove parks a rename source until its destination shows up or
// MoveGrace expires, whichever comes first.
func (b *linuxBackend) stashMove(cookie uint32, path string, isDir bool) {
	b.pmu.Lock()
	defer b.pmu.Unlock()

	pm := &pendingMove{path: path, isDir: isDir}
	pm.timer = time.AfterFunc(b.opts.MoveGrace, func() {
		b.expireMove(cookie)
	})
	b.pending[cookie] = pm
}

// expireMove reports an unpaired rename source as a delete.
func (b *linuxBackend) expireMove(cookie uint32) {
	b.pmu.Lock()
	pm, ok := b.pending[cookie]
	if ok {
		delete(b.pending, cookie)
	}
	b.pmu.Unlock()

	if !ok {
		return
	}

	if pm.isDir {
		b.dropSubtree(pm.path)
	}
	b.emitEvent(Event{Time: time.Now(), Type: EventDeleted, Path: pm.path})
}

// resolveMove pairs a rename destination with its stashed source.
func (b *linuxBackend) resolveMove(cookie uint32, path string, isDir bool) {
	b.pmu.Lock()
	pm, ok := b.pending[cookie]
	if ok {
		pm.timer.Stop()
		delete(b.pending, cookie)
	}
	b.pmu.Unlock()

	if !ok {
		// Moved in from outside the watched tree.
		if isDir && b.opts.Recursive {
			if err := b.watchDir(path); err != nil {
				b.logger.Warn("failed to watch moved-in directory", "path", path, "error", err)
			}
		}
		b.emitEvent(Event{Time: time.Now(), Type: EventCreated, Path: path})
		return
	}

	if pm.isDir {
		b.remapSubtree(pm.path, path)
	}
	b.emitEvent(Event{Time: time.Now(), Type: EventMoved, Path: pm.path, DestPath: path})
}

// remapSubtree rewrites watch bookkeeping after a directory rename.
// The kernel keeps watch descriptors attached to the moved inodes, so
// only the path maps need updating.
func (b *linuxBackend) remapSubtree(oldPath, newPath string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := oldPath + string(filepath.Separator)
	for p, wd := range b.watches {
		if p != oldPath && !strings.HasPrefix(p, prefix) {
			continue
		}
		np := newPath + strings.TrimPrefix(p, oldPath)
		delete(b.watches, p)
		b.watches[np] = wd
		b.wdPaths[wd] = np
	}
	b.logger.Debug("remapped watches", "from", oldPath, "to", newPath)
}

// dropSubtree forgets watches under a directory that left the tree.
func (b *linuxBackend) dropSubtree(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	prefix := path + string(filepath.Separator)
	for p, wd := range b.watches {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		//nolint:gosec // G115: wd is always a small non-negative int from inotify
		_, _ = unix.InotifyRmWatch(b.fd, uint32(wd))
		delete(b.watches, p)
		delete(b.wdPaths, wd)
	}
}

// emitEvent sends an event to the events channel.
func (b *linuxBackend) emitEvent(event Event) {
	select {
	case b.events <- event:
	case <-b.done:
	}
}

// Events returns the events channel.
func (b *linuxBackend) Events() <-chan Event {
	return b.events
}

// Errors returns the errors channel.
func (b *linuxBackend) Errors() <-chan error {
	return b.errors
}

// Stop stops the watcher.
func (b *linuxBackend) Stop() error {
	close(b.done)

	// Wait for goroutines to finish.
	b.wg.Wait()

	// Cancel pending move timers.
	b.pmu.Lock()
	for _, pm := range b.pending {
		pm.timer.Stop()
	}
	clear(b.pending)
	b.pmu.Unlock()

	// Close inotify.
	var closeErr error
	if b.fd >= 0 {
		closeErr = unix.Close(b.fd)
	}

	close(b.events)
	close(b.errors)

	return closeErr
}

// clen returns the length of a null-terminated byte slice.
func clen(n []byte) int {
	for i := 0; i < len(n); i++ {
		if n[i] == 0 {
			return i
		}
	}
	return len(n)
}

// newFallbackBackend is a stub that should never be called on Linux.
// It exists only to satisfy the compiler when watcher.go references it.
func newFallbackBackend(_ *slog.Logger, _ Options) (Backend, error) {
	return nil, fmt.Errorf("fallback backend not available on Linux")
}
