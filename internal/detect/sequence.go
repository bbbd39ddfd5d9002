package detect

import (
	"github.com/fsintent/fsintent-server/internal/domain"
)

// Batch/sequence detectors recognize multi-file and multi-step shapes:
// rename chains, backup copies, and bulk updates.

// detectRenameSequence matches a chain of at least two renames where each
// destination becomes the next source: A -> B -> C. The chain starts at the
// earliest move and follows forward; the primary path is where the file
// finally landed.
func detectRenameSequence(batch []domain.Event) (*domain.FileOperation, error) {
	for i, first := range batch {
		if first.Kind != domain.EventMoved {
			continue
		}
		indices := []int{i}
		current := first.DestPath
		for j := i + 1; j < len(batch); j++ {
			next := batch[j]
			if next.Kind == domain.EventMoved && next.Path == current {
				indices = append(indices, j)
				current = next.DestPath
			}
		}
		if len(indices) < 2 {
			continue
		}
		matched := pick(batch, indices)
		return newOperation(domain.OpRenameSequence, current, matched), nil
	}
	return nil, nil
}

// detectBackupCreate matches a backup copy appearing next to an untouched
// original: a Create whose name derives from another path by a backup
// suffix, while the batch contains no delete or rename of that source. The
// deliberate contrast is with safe writes, where the preserved copy is
// removed again.
func detectBackupCreate(batch []domain.Event) (*domain.FileOperation, error) {
	for i, create := range batch {
		if create.Kind != domain.EventCreated {
			continue
		}
		source, ok := backupSource(create.Path)
		if !ok {
			continue
		}

		disturbed := false
		for _, e := range batch {
			if (e.Kind == domain.EventDeleted || e.Kind == domain.EventMoved) && e.Path == source {
				disturbed = true
				break
			}
		}
		if disturbed {
			continue
		}

		indices := []int{i}
		for j := i + 1; j < len(batch); j++ {
			if batch[j].Kind == domain.EventModified && batch[j].Path == create.Path {
				indices = append(indices, j)
			}
		}
		matched := pick(batch, indices)
		return newOperation(domain.OpBackupCreate, create.Path, matched), nil
	}
	return nil, nil
}

// detectBatchUpdate matches several unrelated files updated as one logical
// change: at least two distinct paths each receiving a Create or Modify,
// with none of them involved in a rename. Temp-named paths are left out;
// writes to those belong to whatever staging dance produced them.
func detectBatchUpdate(batch []domain.Event) (*domain.FileOperation, error) {
	renamed := make(map[string]bool)
	for _, e := range batch {
		if e.Kind == domain.EventMoved {
			renamed[e.Path] = true
			if e.DestPath != "" {
				renamed[e.DestPath] = true
			}
		}
	}

	var indices []int
	paths := make(map[string]bool)
	for i, e := range batch {
		if e.Kind != domain.EventCreated && e.Kind != domain.EventModified {
			continue
		}
		if renamed[e.Path] || isTempPath(e.Path) {
			continue
		}
		indices = append(indices, i)
		paths[e.Path] = true
	}
	if len(paths) < 2 {
		return nil, nil
	}

	matched := pick(batch, indices)
	return newOperation(domain.OpBatchUpdate, matched[0].Path, matched), nil
}
