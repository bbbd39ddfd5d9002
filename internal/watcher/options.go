package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Options configures the file watcher behavior.
//
// Nothing is ignored by default. Intent classification depends on seeing
// temp files, backup files, and hidden editor droppings, so filtering is
// strictly opt-in here.
type Options struct {
	// IgnorePatterns are glob patterns matched against base names.
	IgnorePatterns []string

	// IgnorePaths are directory prefixes never watched or reported.
	// The daemon registers its own data directory here so journal
	// writes don't feed back into the event stream.
	IgnorePaths []string

	// MoveGrace is how long a rename source waits for its destination
	// before being reported as a delete (moved out of the tree).
	MoveGrace time.Duration

	// WriteSettle coalesces bursts of write events into one modify.
	// Only the fallback backend needs this; inotify reports
	// close-after-write natively.
	WriteSettle time.Duration

	// Recursive watches subdirectories of each root.
	Recursive bool
}

// setDefaults applies default values to unset options.
func (o *Options) setDefaults() {
	if o.MoveGrace == 0 {
		o.MoveGrace = 100 * time.Millisecond
	}
	if o.WriteSettle == 0 {
		o.WriteSettle = 100 * time.Millisecond
	}
}

// shouldIgnore checks if a path is excluded from capture.
func (o *Options) shouldIgnore(path string) bool {
	path = filepath.Clean(path)

	for _, prefix := range o.IgnorePaths {
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}

	base := filepath.Base(path)
	for _, pattern := range o.IgnorePatterns {
		matched, err := filepath.Match(pattern, base)
		if err == nil && matched {
			return true
		}
	}

	return false
}
