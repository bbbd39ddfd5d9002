package detect

import "fmt"

// Built-in priorities. Specificity decides the bands: temp patterns beat
// atomic saves beat sequences beat single-file shapes, and the fallback sits
// far below everything. The gaps leave room to slot external detectors
// between tiers without renumbering; [10, 59] is the recommended band for
// third parties.
const (
	PriorityTempRename         = 95
	PriorityTempDeleteRename   = 94
	PriorityTempModifyRename   = 93
	PriorityTempCreateDelete   = 92
	PriorityAtomicSave         = 85
	PrioritySafeWrite          = 84
	PriorityRenameSequence     = 75
	PriorityBackupCreate       = 74
	PriorityBatchUpdate        = 73
	PriorityReplace            = 65
	PriorityDirectModification = 64
	PriorityFallback           = 10
)

// markerDetector is the entry RegisterBuiltins checks to decide whether the
// built-ins are already in place.
const markerDetector = "temp_rename"

type builtin struct {
	name        string
	description string
	detector    DetectorFunc
	priority    int
}

func builtins() []builtin {
	return []builtin{
		{"temp_rename", "temp file created then renamed onto the final path", detectTempRename, PriorityTempRename},
		{"temp_delete_rename", "original deleted before a temp file replaces it", detectTempDeleteRename, PriorityTempDeleteRename},
		{"temp_modify_rename", "temp file written in steps then renamed onto the final path", detectTempModifyRename, PriorityTempModifyRename},
		{"temp_create_delete", "temp file used as scratch and discarded, real file created separately", detectTempCreateDelete, PriorityTempCreateDelete},
		{"atomic_save", "staged write renamed onto the target without a recognized temp name", detectAtomicSave, PriorityAtomicSave},
		{"safe_write", "original preserved to a backup name, rewritten, backup removed", detectSafeWrite, PrioritySafeWrite},
		{"rename_sequence", "chain of renames where each destination feeds the next move", detectRenameSequence, PriorityRenameSequence},
		{"backup_create", "backup copy created while the original stays untouched", detectBackupCreate, PriorityBackupCreate},
		{"batch_update", "several unrelated files updated as one logical change", detectBatchUpdate, PriorityBatchUpdate},
		{"replace", "file deleted and recreated at the same path", detectReplace, PriorityReplace},
		{"direct_modification", "repeated in-place writes to one file", detectDirectModification, PriorityDirectModification},
		{"simple_operation", "single event with no richer pattern around it", detectSimpleOperation, PriorityFallback},
	}
}

// RegisterBuiltins installs the built-in detectors under their fixed
// priorities. It is idempotent: when the marker entry is already present the
// call is a no-op, so any number of initialization paths may trigger it.
// Concurrent callers are safe because re-registering an identical entry is
// itself a no-op.
func RegisterBuiltins(r *Registry) error {
	if _, ok := r.Get(markerDetector); ok {
		return nil
	}

	for _, b := range builtins() {
		if err := r.Register(b.name, b.priority, b.description, b.detector); err != nil {
			return fmt.Errorf("register %s: %w", b.name, err)
		}
	}
	return nil
}
