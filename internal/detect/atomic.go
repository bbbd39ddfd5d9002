package detect

import (
	"github.com/fsintent/fsintent-server/internal/domain"
)

// Atomic-save detectors recognize write-then-swap shapes that the strict
// temp-pattern band declined, typically because the staging file follows no
// recognized temp-name convention.

// detectAtomicSave matches the generic staged save: one or more writes
// (Create/Modify) to some path, then a Move of that path onto a non-temp
// destination. The staging name does not need to look like a temp file.
func detectAtomicSave(batch []domain.Event) (*domain.FileOperation, error) {
	for i, move := range batch {
		if move.Kind != domain.EventMoved || isTempPath(move.DestPath) || move.Path == move.DestPath {
			continue
		}
		var indices []int
		for j := 0; j < i; j++ {
			w := batch[j]
			if (w.Kind == domain.EventCreated || w.Kind == domain.EventModified) && w.Path == move.Path {
				indices = append(indices, j)
			}
		}
		if len(indices) == 0 {
			continue
		}
		indices = append(indices, i)
		matched := pick(batch, indices)
		return newOperation(domain.OpAtomicSave, move.DestPath, matched), nil
	}
	return nil, nil
}

// detectSafeWrite matches the conservative save: the original preserved
// under another name, new content written at the original path, and the
// preserved copy removed once the write landed.
//
// The preservation step is either Move(original -> backup) or, for tools
// that copy instead of rename, Create(backup) where the backup name derives
// from the original by a recognized backup suffix.
func detectSafeWrite(batch []domain.Event) (*domain.FileOperation, error) {
	for i, preserve := range batch {
		var original, backup string
		switch {
		case preserve.Kind == domain.EventMoved && !isTempPath(preserve.Path):
			original, backup = preserve.Path, preserve.DestPath
		case preserve.Kind == domain.EventCreated && isBackupPath(preserve.Path):
			src, ok := backupSource(preserve.Path)
			if !ok {
				continue
			}
			original, backup = src, preserve.Path
		default:
			continue
		}

		indices := []int{i}
		wrote := false
		removed := -1
		for j := i + 1; j < len(batch); j++ {
			e := batch[j]
			switch {
			case (e.Kind == domain.EventCreated || e.Kind == domain.EventModified) && e.Path == original:
				indices = append(indices, j)
				wrote = true
			case e.Kind == domain.EventDeleted && e.Path == backup:
				removed = j
			}
		}
		if !wrote || removed < 0 {
			continue
		}
		indices = append(indices, removed)
		matched := pick(batch, indices)
		return newOperation(domain.OpSafeWrite, original, matched), nil
	}
	return nil, nil
}
