package detect

import (
	"github.com/fsintent/fsintent-server/internal/domain"
)

// Temp-pattern detectors recognize the staging dances editors perform around
// a save: a temp file created, written, and promoted (or discarded). They run
// in the highest priority band because the patterns are the most specific,
// and a generic detector that saw the same events first would misreport them
// as unrelated edits.

// detectTempRename matches a temp file created and immediately renamed onto
// the final path: Create(temp) then Move(temp -> final), with no other event
// touching either path in between. Writes to the temp file between the two
// belong to detectTempModifyRename instead.
func detectTempRename(batch []domain.Event) (*domain.FileOperation, error) {
	for i, create := range batch {
		if create.Kind != domain.EventCreated || !isTempPath(create.Path) {
			continue
		}
		for j := i + 1; j < len(batch); j++ {
			move := batch[j]
			if move.Kind != domain.EventMoved || move.Path != create.Path || isTempPath(move.DestPath) {
				continue
			}
			if touches(batch[i+1:j], create.Path, move.DestPath) {
				break
			}
			matched := pick(batch, []int{i, j})
			return newOperation(domain.OpTempRename, move.DestPath, matched), nil
		}
	}
	return nil, nil
}

// detectTempDeleteRename matches the original being deleted before a temp
// file replaces it: Delete(final), Create(temp), Move(temp -> final).
func detectTempDeleteRename(batch []domain.Event) (*domain.FileOperation, error) {
	for i, del := range batch {
		if del.Kind != domain.EventDeleted || isTempPath(del.Path) {
			continue
		}
		final := del.Path
		for j := i + 1; j < len(batch); j++ {
			create := batch[j]
			if create.Kind != domain.EventCreated || !isTempPath(create.Path) {
				continue
			}
			for k := j + 1; k < len(batch); k++ {
				move := batch[k]
				if move.Kind == domain.EventMoved && move.Path == create.Path && move.DestPath == final {
					matched := pick(batch, []int{i, j, k})
					return newOperation(domain.OpTempDeleteRename, final, matched), nil
				}
			}
		}
	}
	return nil, nil
}

// detectTempModifyRename matches a temp file written in visible steps before
// promotion: Create(temp), one or more Modify(temp), Move(temp -> final).
func detectTempModifyRename(batch []domain.Event) (*domain.FileOperation, error) {
	for i, create := range batch {
		if create.Kind != domain.EventCreated || !isTempPath(create.Path) {
			continue
		}
		tmp := create.Path
		for j := i + 1; j < len(batch); j++ {
			move := batch[j]
			if move.Kind != domain.EventMoved || move.Path != tmp || isTempPath(move.DestPath) {
				continue
			}
			indices := []int{i}
			for k := i + 1; k < j; k++ {
				if batch[k].Kind == domain.EventModified && batch[k].Path == tmp {
					indices = append(indices, k)
				}
			}
			if len(indices) == 1 {
				// No writes between create and move; not this pattern.
				break
			}
			indices = append(indices, j)
			matched := pick(batch, indices)
			return newOperation(domain.OpTempModifyRename, move.DestPath, matched), nil
		}
	}
	return nil, nil
}

// detectTempCreateDelete matches a temp file used as scratch space and
// discarded, with the real file created independently: Create(temp),
// Delete(temp), then Create of a non-temp path. Writes to the scratch file
// before its deletion ride along as part of the claim.
func detectTempCreateDelete(batch []domain.Event) (*domain.FileOperation, error) {
	for i, create := range batch {
		if create.Kind != domain.EventCreated || !isTempPath(create.Path) {
			continue
		}
		tmp := create.Path
		for j := i + 1; j < len(batch); j++ {
			if batch[j].Kind != domain.EventDeleted || batch[j].Path != tmp {
				continue
			}
			for k := j + 1; k < len(batch); k++ {
				final := batch[k]
				if final.Kind != domain.EventCreated || isTempPath(final.Path) {
					continue
				}
				indices := []int{i}
				for m := i + 1; m < j; m++ {
					if batch[m].Kind == domain.EventModified && batch[m].Path == tmp {
						indices = append(indices, m)
					}
				}
				indices = append(indices, j, k)
				matched := pick(batch, indices)
				return newOperation(domain.OpTempCreateDelete, final.Path, matched), nil
			}
		}
	}
	return nil, nil
}
