// Package detect classifies correlated batches of filesystem events into
// semantic file operations. A batch is an ordered cluster of raw events that
// plausibly belong to one logical user action (one editor save, one rename
// chain, one bulk update); the engine runs registered detectors over it in
// priority order and returns the first match.
//
// Detection is pure and synchronous: no I/O, no blocking, no retries. For a
// fixed registry state, identical batches always produce identical results.
package detect

import (
	"maps"
	"slices"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// Detector inspects an ordered event batch and either claims it, returning
// the classified operation, or declines with (nil, nil). Detectors must be
// pure functions of the batch: no shared mutable state, no side effects.
// A non-nil error is a defect and aborts detection for the batch.
type Detector interface {
	Detect(batch []domain.Event) (*domain.FileOperation, error)
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc func(batch []domain.Event) (*domain.FileOperation, error)

// Detect implements Detector.
func (f DetectorFunc) Detect(batch []domain.Event) (*domain.FileOperation, error) {
	return f(batch)
}

// newOperation builds a FileOperation from the events a detector claimed.
// AffectedPaths is derived from the matched events so the primary-path
// membership invariant holds by construction. DetectorName is filled in by
// the engine.
func newOperation(t domain.OperationType, primary string, matched []domain.Event) *domain.FileOperation {
	return &domain.FileOperation{
		Type:          t,
		PrimaryPath:   primary,
		AffectedPaths: pathsTouched(matched),
		MatchedEvents: matched,
	}
}

// pathsTouched returns the sorted, de-duplicated set of paths the events
// reference, including move destinations.
func pathsTouched(events []domain.Event) []string {
	set := make(map[string]struct{}, len(events))
	for _, e := range events {
		set[e.Path] = struct{}{}
		if e.Kind == domain.EventMoved && e.DestPath != "" {
			set[e.DestPath] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// pick returns the events at the given batch indices, in index order, so the
// result is always an order-preserving subsequence of the batch.
func pick(batch []domain.Event, indices []int) []domain.Event {
	slices.Sort(indices)
	out := make([]domain.Event, 0, len(indices))
	for _, i := range indices {
		out = append(out, batch[i])
	}
	return out
}

// touches reports whether any of the events reference one of the paths,
// either as source or as move destination.
func touches(events []domain.Event, paths ...string) bool {
	for _, e := range events {
		for _, p := range paths {
			if e.Path == p || (e.Kind == domain.EventMoved && e.DestPath == p) {
				return true
			}
		}
	}
	return false
}
