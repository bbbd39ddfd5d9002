package detect

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch reports that Detect was called with zero events. A batch is
// defined to represent at least one observed change, so an empty one is a
// caller bug, never silently handled.
var ErrEmptyBatch = errors.New("empty event batch")

// ErrUnknownDetector reports an operation on a detector name that is not
// registered.
var ErrUnknownDetector = errors.New("unknown detector")

// DuplicateDetectorError reports a registration under a name that is already
// taken with a different priority. Re-registering an identical entry is a
// silent no-op instead, so bootstrap stays re-entrant.
type DuplicateDetectorError struct {
	Name     string
	Existing int
	Proposed int
}

func (e *DuplicateDetectorError) Error() string {
	return fmt.Sprintf("detector %q already registered with priority %d (proposed %d)",
		e.Name, e.Existing, e.Proposed)
}

// InvalidPriorityError reports a registration priority outside [0, 100].
type InvalidPriorityError struct {
	Name     string
	Priority int
}

func (e *InvalidPriorityError) Error() string {
	return fmt.Sprintf("detector %q: priority %d outside [%d, %d]",
		e.Name, e.Priority, MinPriority, MaxPriority)
}
