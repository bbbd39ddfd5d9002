package domain

import (
	"slices"
	"time"
)

// OperationRecord is a journaled FileOperation: the classification result
// plus the correlation context it came from. Records are immutable once
// written.
type OperationRecord struct {
	DetectedAt    time.Time     `json:"detected_at"`
	ID            string        `json:"id"`
	BatchID       string        `json:"batch_id"`
	WatchRoot     string        `json:"watch_root,omitempty"`
	Type          OperationType `json:"type"`
	PrimaryPath   string        `json:"primary_path"`
	DetectorName  string        `json:"detector_name"`
	AffectedPaths []string      `json:"affected_paths"`
	MatchedEvents []Event       `json:"matched_events"`
	BatchSize     int           `json:"batch_size"`
}

// NewOperationRecord journals op as detected within the given batch.
func NewOperationRecord(id, batchID, watchRoot string, op *FileOperation, batchSize int) *OperationRecord {
	return &OperationRecord{
		ID:            id,
		BatchID:       batchID,
		WatchRoot:     watchRoot,
		Type:          op.Type,
		PrimaryPath:   op.PrimaryPath,
		DetectorName:  op.DetectorName,
		AffectedPaths: slices.Clone(op.AffectedPaths),
		MatchedEvents: slices.Clone(op.MatchedEvents),
		BatchSize:     batchSize,
		DetectedAt:    time.Now(),
	}
}

// WatchRoot is a directory tree the daemon watches. Roots are persisted so a
// restart resumes the same coverage.
type WatchRoot struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Recursive bool      `json:"recursive"`
	Enabled   bool      `json:"enabled"`
}

// NewWatchRoot creates an enabled watch root for the given directory.
func NewWatchRoot(id, path string, recursive bool) *WatchRoot {
	now := time.Now()
	return &WatchRoot{
		ID:        id,
		Path:      path,
		Recursive: recursive,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp to the current time.
func (w *WatchRoot) Touch() {
	w.UpdatedAt = time.Now()
}

// APIKey is a named credential for the HTTP API. Only the argon2id hash of
// the secret is stored; the secret itself is shown once at creation.
type APIKey struct {
	CreatedAt  time.Time `json:"created_at"`
	LastUsedAt time.Time `json:"last_used_at,omitzero"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
}
