package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
)

// Watcher captures raw file system events for intent classification
type Watcher struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a new file watcher
// The watcher automatically selects the best backend for the current platform:
// - Linux: Uses inotify with rename-cookie pairing, so moves arrive as single events
// - Others: Uses fsnotify with a rename heuristic and write coalescing
func New(logger *slog.Logger, opts Options) (*Watcher, error) {
	// Apply defaults
	opts.setDefaults()

	// Create platform-specific backend
	var backend Backend
	var err error

	if runtime.GOOS == "linux" {
		backend, err = newLinuxBackend(logger, opts)
		logger.Info("using Linux inotify backend")
	} else {
		backend, err = newFallbackBackend(logger, opts)
		logger.Info("using fsnotify fallback backend", "platform", runtime.GOOS)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create backend: %w", err)
	}

	return &Watcher{
		backend: backend,
		logger:  logger,
	}, nil
}

// Watch adds a path to be monitored
// The path can be a file or directory. Directories are watched recursively.
func (w *Watcher) Watch(path string) error {
	return w.backend.Watch(path)
}

// Unwatch removes a watched root and its subtree
func (w *Watcher) Unwatch(path string) error {
	return w.backend.Unwatch(path)
}

// Start begins watching for events
// This method blocks until the context is cancelled
func (w *Watcher) Start(ctx context.Context) error {
	return w.backend.Start(ctx)
}

// Stop stops the watcher and releases resources
func (w *Watcher) Stop() error {
	return w.backend.Stop()
}

// Events returns the channel for receiving file system events
func (w *Watcher) Events() <-chan Event {
	return w.backend.Events()
}

// Errors returns the channel for receiving errors
func (w *Watcher) Errors() <-chan error {
	return w.backend.Errors()
}
