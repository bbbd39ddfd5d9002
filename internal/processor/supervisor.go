package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/fsintent/fsintent-server/internal/id"
	"github.com/fsintent/fsintent-server/internal/normalize"
	"github.com/fsintent/fsintent-server/internal/sse"
	"github.com/fsintent/fsintent-server/internal/store"
)

// ErrNotDirectory rejects watch roots that point at regular files.
var ErrNotDirectory = errors.New("watch root is not a directory")

// RootWatcher is the part of the capture backend the supervisor drives.
// Satisfied by *watcher.Watcher; tests substitute a recording fake.
type RootWatcher interface {
	Watch(path string) error
	Unwatch(path string) error
}

// WatchSupervisor keeps the live watcher in step with the persisted watch
// roots. The store is the source of truth: every change goes through it
// first, and only a successful write touches the backend. On startup Resume
// replays the stored roots so a restart picks up exactly the coverage the
// operator configured.
type WatchSupervisor struct {
	store        *store.Store
	watcher      RootWatcher
	processor    *EventProcessor
	watchStreams *sse.WatchBroadcaster
	logger       *slog.Logger

	// recursive is the daemon-wide watch mode; the backends apply one
	// mode to every root, so it is recorded on each created root.
	recursive bool

	// mu serializes add/remove/toggle so the backend and the store never
	// disagree about which roots are live.
	mu sync.Mutex
}

// NewWatchSupervisor creates a supervisor. The watch stream broadcaster may
// be nil when per-watch streaming is not wired up.
func NewWatchSupervisor(st *store.Store, w RootWatcher, ep *EventProcessor, streams *sse.WatchBroadcaster, recursive bool, logger *slog.Logger) *WatchSupervisor {
	return &WatchSupervisor{
		store:        st,
		watcher:      w,
		processor:    ep,
		watchStreams: streams,
		logger:       logger,
		recursive:    recursive,
	}
}

// Resume restores stored watch roots into the backend and registers the
// given seed paths if they are not stored yet. Disabled roots stay
// registered in the store but are not watched. A root whose directory has
// vanished is left enabled and logged; it resumes when the directory
// reappears and the daemon restarts.
func (s *WatchSupervisor) Resume(ctx context.Context, seedPaths []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, path := range seedPaths {
		if _, err := s.addLocked(ctx, path); err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			return fmt.Errorf("seed watch %s: %w", path, err)
		}
	}

	roots, err := s.store.ListWatches(ctx)
	if err != nil {
		return fmt.Errorf("list watches: %w", err)
	}

	resumed := 0
	for _, root := range roots {
		if !root.Enabled {
			continue
		}
		if err := s.attach(root); err != nil {
			s.logger.Warn("watch root not resumed",
				"watch_id", root.ID,
				"path", root.Path,
				"error", err,
			)
			continue
		}
		resumed++
	}

	s.logger.Info("watch roots resumed",
		"stored", len(roots),
		"watching", resumed,
	)
	return nil
}

// AddWatch persists a new watch root and starts watching it. The directory
// must exist; the store rejects a path that is already registered.
func (s *WatchSupervisor) AddWatch(ctx context.Context, path string) (*domain.WatchRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.addLocked(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := s.attach(root); err != nil {
		// Roll back so a retry after fixing permissions can succeed.
		if derr := s.store.DeleteWatch(ctx, root.ID); derr != nil {
			s.logger.Error("orphaned watch root after failed attach",
				"watch_id", root.ID,
				"error", derr,
			)
		}
		return nil, fmt.Errorf("watch %s: %w", root.Path, err)
	}

	s.logger.Info("watch root added",
		"watch_id", root.ID,
		"path", root.Path,
	)
	return root, nil
}

func (s *WatchSupervisor) addLocked(ctx context.Context, path string) (*domain.WatchRoot, error) {
	path = normalize.Path(path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}

	rootID, err := id.Generate(id.PrefixWatch)
	if err != nil {
		return nil, err
	}

	root := domain.NewWatchRoot(rootID, path, s.recursive)
	if err := s.store.CreateWatch(ctx, root); err != nil {
		return nil, err
	}
	return root, nil
}

// RemoveWatch stops watching a root and deletes it from the store. Stream
// subscribers following the root are disconnected.
func (s *WatchSupervisor) RemoveWatch(ctx context.Context, watchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, err := s.store.GetWatch(ctx, watchID)
	if err != nil {
		return err
	}

	if root.Enabled {
		s.detach(root)
	}

	if err := s.store.DeleteWatch(ctx, watchID); err != nil {
		return err
	}

	if s.watchStreams != nil {
		s.watchStreams.CloseWatch(watchID)
	}

	s.logger.Info("watch root removed",
		"watch_id", watchID,
		"path", root.Path,
	)
	return nil
}

// SetEnabled pauses or resumes a watch root without forgetting it.
func (s *WatchSupervisor) SetEnabled(ctx context.Context, watchID string, enabled bool) (*domain.WatchRoot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, err := s.store.GetWatch(ctx, watchID)
	if err != nil {
		return nil, err
	}
	if before.Enabled == enabled {
		return before, nil
	}

	root, err := s.store.SetWatchEnabled(ctx, watchID, enabled)
	if err != nil {
		return nil, err
	}

	if enabled {
		if err := s.attach(root); err != nil {
			return nil, fmt.Errorf("watch %s: %w", root.Path, err)
		}
	} else {
		s.detach(root)
	}

	s.logger.Info("watch root toggled",
		"watch_id", watchID,
		"path", root.Path,
		"enabled", enabled,
	)
	return root, nil
}

// ListWatches returns all stored watch roots.
func (s *WatchSupervisor) ListWatches(ctx context.Context) ([]*domain.WatchRoot, error) {
	return s.store.ListWatches(ctx)
}

// GetWatch returns one stored watch root.
func (s *WatchSupervisor) GetWatch(ctx context.Context, watchID string) (*domain.WatchRoot, error) {
	return s.store.GetWatch(ctx, watchID)
}

// attach starts capture for a root and registers it for attribution.
func (s *WatchSupervisor) attach(root *domain.WatchRoot) error {
	if err := s.watcher.Watch(root.Path); err != nil {
		return err
	}
	s.processor.SetRoot(root.Path, root.ID)
	return nil
}

// detach stops capture for a root. Unwatch errors are logged, not returned:
// the store already forgot the root, and a backend that lost the watch on
// its own (deleted directory) reports an error here that changes nothing.
func (s *WatchSupervisor) detach(root *domain.WatchRoot) {
	s.processor.RemoveRoot(root.Path)
	if err := s.watcher.Unwatch(root.Path); err != nil {
		s.logger.Warn("unwatch failed",
			"watch_id", root.ID,
			"path", root.Path,
			"error", err,
		)
	}
}
