package detect

import (
	"github.com/fsintent/fsintent-server/internal/domain"
)

// Simple detectors cover single-file shapes without staging, plus the
// universal fallback for lone events.

// detectReplace matches a file deleted and recreated at the same path, with
// no rename step in between. Writes following the recreation ride along.
func detectReplace(batch []domain.Event) (*domain.FileOperation, error) {
	for i, del := range batch {
		if del.Kind != domain.EventDeleted {
			continue
		}
		path := del.Path
		for j := i + 1; j < len(batch); j++ {
			if batch[j].Kind != domain.EventCreated || batch[j].Path != path {
				continue
			}
			indices := []int{i, j}
			for k := j + 1; k < len(batch); k++ {
				if batch[k].Kind == domain.EventModified && batch[k].Path == path {
					indices = append(indices, k)
				}
			}
			matched := pick(batch, indices)
			return newOperation(domain.OpReplace, path, matched), nil
		}
	}
	return nil, nil
}

// detectDirectModification matches repeated in-place writes: two or more
// Modify events on one path that sees no create, delete, or rename in the
// batch.
func detectDirectModification(batch []domain.Event) (*domain.FileOperation, error) {
	for i, first := range batch {
		if first.Kind != domain.EventModified {
			continue
		}
		path := first.Path

		indices := []int{i}
		clean := true
		for j, e := range batch {
			if j == i {
				continue
			}
			switch {
			case e.Kind == domain.EventModified && e.Path == path:
				if j > i {
					indices = append(indices, j)
				} else {
					clean = false // an earlier modify already anchors this path
				}
			case e.Path == path, e.Kind == domain.EventMoved && e.DestPath == path:
				clean = false
			}
		}
		if !clean || len(indices) < 2 {
			continue
		}

		matched := pick(batch, indices)
		return newOperation(domain.OpDirectModification, path, matched), nil
	}
	return nil, nil
}

// detectSimpleOperation is the fallback: it claims any single-event batch so
// lone events always classify. The primary path is where the file ended up,
// which for a rename is the destination.
func detectSimpleOperation(batch []domain.Event) (*domain.FileOperation, error) {
	if len(batch) != 1 {
		return nil, nil
	}
	event := batch[0]
	matched := []domain.Event{event}
	return newOperation(domain.OpSimpleOperation, event.FinalPath(), matched), nil
}
