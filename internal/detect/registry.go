package detect

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
)

// Priority bounds for registered detectors. The band [10, 59] is recommended
// for external detectors so the built-ins are never accidentally shadowed.
const (
	MinPriority = 0
	MaxPriority = 100
)

// Entry is one registered detector.
type Entry struct {
	// Detector is the classification function.
	Detector Detector
	// Name uniquely identifies the detector within its registry.
	Name string
	// Description says what the detector recognizes, for introspection.
	Description string
	// Priority orders execution, highest first. Higher specificity should
	// get higher priority so narrow patterns win over broad ones.
	Priority int
	// Enabled entries run; disabled ones are skipped without being invoked.
	Enabled bool

	// seq is the registration sequence, the stable tie-break within a
	// priority.
	seq uint64
}

// Registry is a thread-safe, name-keyed store of detector entries. Reads
// vastly outnumber writes: every detection call enumerates the registry,
// while registration happens at startup and rarely after, so the sorted view
// is rebuilt on write and snapshot-copied on read.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	sorted  []*Entry
	nextSeq uint64
}

// NewRegistry creates an empty detector registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
	}
}

// Register inserts a detector under a unique name.
//
// Registering a name that already exists with the same priority is a silent
// no-op, which keeps bootstrap idempotent under concurrent callers. The same
// name with a different priority returns a DuplicateDetectorError, and a
// priority outside [MinPriority, MaxPriority] returns an
// InvalidPriorityError; neither takes effect. New entries start enabled.
func (r *Registry) Register(name string, priority int, description string, d Detector) error {
	if priority < MinPriority || priority > MaxPriority {
		return &InvalidPriorityError{Name: name, Priority: priority}
	}
	if d == nil {
		return fmt.Errorf("detector %q: nil detector", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.entries[name]; ok {
		if existing.Priority == priority {
			return nil
		}
		return &DuplicateDetectorError{Name: name, Existing: existing.Priority, Proposed: priority}
	}

	entry := &Entry{
		Detector:    d,
		Name:        name,
		Description: description,
		Priority:    priority,
		Enabled:     true,
		seq:         r.nextSeq,
	}
	r.nextSeq++

	r.entries[name] = entry
	r.sorted = append(r.sorted, entry)
	r.sortLocked()

	return nil
}

// sortLocked rebuilds execution order: priority descending, then registration
// order, then name ascending for cross-process reproducibility.
func (r *Registry) sortLocked() {
	slices.SortFunc(r.sorted, func(a, b *Entry) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		if c := cmp.Compare(a.seq, b.seq); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// Get returns a copy of the named entry.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// All returns a snapshot of every entry in execution order. The snapshot is
// fully formed and independent of later registrations.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, len(r.sorted))
	for i, entry := range r.sorted {
		out[i] = *entry
	}
	return out
}

// SetEnabled mutes or unmutes a detector without unregistering it. Returns
// ErrUnknownDetector for names that were never registered.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDetector, name)
	}
	entry.Enabled = enabled
	return nil
}

// Len returns the number of registered detectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry. Test and reset use only: after a Clear the
// built-ins must be re-registered before the next detection call.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	clear(r.entries)
	r.sorted = r.sorted[:0]
}
