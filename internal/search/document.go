// Package search provides full-text search over the operation journal using
// Bleve. It enables filename and path lookup across recorded operations with
// faceted filtering by operation type and detector, fuzzy matching, and
// directory-scoped traversal.
package search

import (
	"path/filepath"
	"strings"

	"github.com/fsintent/fsintent-server/internal/domain"
)

// SearchDocument is the document structure for the Bleve index. One document
// is indexed per journal record, keyed by the record ID.
//
// Design note: We denormalize the affected paths and their ancestor
// directories into each document so a single query answers both "find
// config.yaml" and "what happened under /etc". The trade-off is index space
// for query performance, which is worthwhile for journals where interactive
// lookup is the whole point.
type SearchDocument struct {
	// Identity
	ID   string `json:"id"`   // Journal record ID (op_xxx)
	Type string `json:"type"` // Operation type name (AtomicSave, Replace, ...)

	// Name is the base name of the primary path. Primary search target.
	Name string `json:"name"`

	// PrimaryPath is the path the operation conceptually acted on.
	PrimaryPath string `json:"primary_path"`

	// Detector that produced the match.
	Detector string `json:"detector"`

	// Provenance
	BatchID   string `json:"batch_id"`
	WatchRoot string `json:"watch_root,omitempty"` // Empty for replayed batches

	// Paths holds every path the operation touched, including transient
	// temp and backup names.
	Paths []string `json:"paths,omitempty"`

	// DirPaths holds the ancestor directories of every affected path,
	// e.g. "/etc/nginx/nginx.conf" contributes ["/etc/nginx", "/etc"].
	// Enables directory-scoped filtering that is precise about path
	// boundaries, unlike a raw string prefix.
	DirPaths []string `json:"dir_paths,omitempty"`

	// Numeric fields for range queries and sorting
	BatchSize  int   `json:"batch_size,omitempty"`
	DetectedAt int64 `json:"detected_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
// Bleve by default uses Go struct field names (capitalized), but our
// mapping uses lowercase names, so we convert explicitly.
func (d *SearchDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":           d.ID,
		"type":         d.Type,
		"name":         d.Name,
		"primary_path": d.PrimaryPath,
		"detector":     d.Detector,
		"batch_id":     d.BatchID,
		"detected_at":  d.DetectedAt,
	}

	// Optional fields - only add if non-empty
	if d.WatchRoot != "" {
		m["watch_root"] = d.WatchRoot
	}
	if len(d.Paths) > 0 {
		m["paths"] = d.Paths
	}
	if len(d.DirPaths) > 0 {
		m["dir_paths"] = d.DirPaths
	}
	if d.BatchSize > 0 {
		m["batch_size"] = d.BatchSize
	}

	return m
}

// RecordToSearchDocument converts a journal record to a SearchDocument.
// The record is self-contained, so no store lookups are needed; the search
// package stays independent of store.
func RecordToSearchDocument(rec *domain.OperationRecord) *SearchDocument {
	return &SearchDocument{
		ID:          rec.ID,
		Type:        rec.Type.String(),
		Name:        filepath.Base(rec.PrimaryPath),
		PrimaryPath: rec.PrimaryPath,
		Detector:    rec.DetectorName,
		BatchID:     rec.BatchID,
		WatchRoot:   rec.WatchRoot,
		Paths:       rec.AffectedPaths,
		DirPaths:    ancestorDirs(rec.AffectedPaths),
		BatchSize:   rec.BatchSize,
		DetectedAt:  rec.DetectedAt.UnixMilli(),
	}
}

// ancestorDirs expands a set of paths into the set of all ancestor
// directories, deduplicated.
//
// For example, ["/etc/nginx/nginx.conf", "/etc/nginx/nginx.conf.bak"]
// returns ["/etc/nginx", "/etc"].
//
// This enables searches like "everything under /etc" to match with an exact
// term query instead of a string prefix, so "/etc/nginx" never pulls in
// "/etc/nginx-staging".
func ancestorDirs(paths []string) []string {
	dirSet := make(map[string]bool)

	for _, p := range paths {
		// Strip the base name, then walk up one segment at a time.
		dir := p
		if i := strings.LastIndex(dir, "/"); i >= 0 {
			dir = dir[:i]
		}
		for dir != "" {
			dirSet[dir] = true

			lastSlash := strings.LastIndex(dir, "/")
			if lastSlash <= 0 {
				break
			}
			dir = dir[:lastSlash]
		}
	}

	if len(dirSet) == 0 {
		return nil
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	return dirs
}
