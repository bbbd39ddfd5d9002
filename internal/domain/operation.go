package domain

import "fmt"

// OperationType classifies what a batch of filesystem events semantically
// amounts to. The temp-pattern variants distinguish how an editor staged its
// write; most consumers only care about the final path and the broad family.
type OperationType int

const (
	// OpUnknown is the zero value; the engine never produces it.
	OpUnknown OperationType = iota
	// OpTempRename is a temp file created and renamed onto the final path.
	OpTempRename
	// OpTempDeleteRename is the original deleted before a temp file replaced it.
	OpTempDeleteRename
	// OpTempModifyRename is a temp file written in several steps, then renamed
	// onto the final path.
	OpTempModifyRename
	// OpTempCreateDelete is a temp file used as scratch space and discarded,
	// with the real file created independently.
	OpTempCreateDelete
	// OpAtomicSave is the generic write-then-rename shape without a recognized
	// temp naming convention.
	OpAtomicSave
	// OpSafeWrite is original-to-backup, new content written, backup removed.
	OpSafeWrite
	// OpRenameSequence is a chain of renames A -> B -> C.
	OpRenameSequence
	// OpBackupCreate is a backup copy appearing next to an untouched original.
	OpBackupCreate
	// OpBatchUpdate is several unrelated files updated as one logical change.
	OpBatchUpdate
	// OpReplace is a file deleted and recreated at the same path.
	OpReplace
	// OpDirectModification is repeated in-place writes to a single file.
	OpDirectModification
	// OpSimpleOperation is a single event with no richer pattern around it.
	OpSimpleOperation
)

var operationTypeNames = map[OperationType]string{
	OpUnknown:            "Unknown",
	OpTempRename:         "TempRename",
	OpTempDeleteRename:   "TempDeleteRename",
	OpTempModifyRename:   "TempModifyRename",
	OpTempCreateDelete:   "TempCreateDelete",
	OpAtomicSave:         "AtomicSave",
	OpSafeWrite:          "SafeWrite",
	OpRenameSequence:     "RenameSequence",
	OpBackupCreate:       "BackupCreate",
	OpBatchUpdate:        "BatchUpdate",
	OpReplace:            "Replace",
	OpDirectModification: "DirectModification",
	OpSimpleOperation:    "SimpleOperation",
}

// String returns the canonical name of the operation type.
func (t OperationType) String() string {
	if name, ok := operationTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (t OperationType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *OperationType) UnmarshalText(text []byte) error {
	s := string(text)
	for typ, name := range operationTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown operation type %q", text)
}

// ParseOperationType converts a canonical name back to its OperationType.
func ParseOperationType(s string) (OperationType, error) {
	var t OperationType
	if err := t.UnmarshalText([]byte(s)); err != nil {
		return OpUnknown, err
	}
	return t, nil
}

// FileOperation is the classification result for one event batch.
//
// Invariants: PrimaryPath is always an element of AffectedPaths, and
// MatchedEvents is a non-empty, order-preserving subsequence of the batch the
// winning detector inspected.
type FileOperation struct {
	// Type is the semantic classification.
	Type OperationType `json:"type"`

	// PrimaryPath is the path the user conceptually acted on: the final path
	// after any temp or rename dance.
	PrimaryPath string `json:"primary_path"`

	// AffectedPaths is every path touched by the matched events, including
	// transient temp and backup names. Sorted, no duplicates.
	AffectedPaths []string `json:"affected_paths"`

	// MatchedEvents is the subsequence of the input batch the detector
	// consumed to justify its decision.
	MatchedEvents []Event `json:"matched_events"`

	// DetectorName identifies the detector that produced the match.
	DetectorName string `json:"detector_name"`
}
