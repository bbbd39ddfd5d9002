package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/regexp"
	"github.com/blevesearch/bleve/v2/mapping"
)

// pathAnalyzerName is the custom analyzer for file names and paths.
//
// The stock analyzers fit prose, not paths: the unicode tokenizer keeps
// dotted names like "nginx.conf" as a single token (so "nginx" finds
// nothing), and the letter tokenizer drops digits (so "q3" becomes "q").
// This analyzer splits on every non-alphanumeric rune and lowercases,
// turning "/etc/nginx/nginx.conf" into [etc, nginx, nginx, conf].
const pathAnalyzerName = "path_segments"

// buildIndexMapping creates the Bleve index mapping for search documents.
//
// The mapping is designed with these priorities:
//  1. Fast full-text search on file names and path segments
//  2. Exact keyword matching for type, detector, and directory filters
//  3. Numeric range queries for detection time and batch size
//  4. Term vectors enabled on key fields for highlighting
func buildIndexMapping() (mapping.IndexMapping, error) {
	// Create the index mapping
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomTokenizer("alnum", map[string]any{
		"type":   regexp.Name,
		"regexp": `[\p{L}\p{N}]+`,
	}); err != nil {
		return nil, fmt.Errorf("register tokenizer: %w", err)
	}
	if err := indexMapping.AddCustomAnalyzer(pathAnalyzerName, map[string]any{
		"type":          custom.Name,
		"tokenizer":     "alnum",
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = pathAnalyzerName

	// Create document mapping
	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Name field - base name of the primary path, primary search target
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = pathAnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Affected paths - every path segment becomes searchable on its own
	pathsFieldMapping := bleve.NewTextFieldMapping()
	pathsFieldMapping.Analyzer = pathAnalyzerName
	pathsFieldMapping.Store = true
	pathsFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("paths", pathsFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	// Type - operation type name, for filtering and faceting
	typeFieldMapping := bleve.NewTextFieldMapping()
	typeFieldMapping.Analyzer = keyword.Name
	typeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("type", typeFieldMapping)

	// Detector - for filtering and faceting
	detectorFieldMapping := bleve.NewTextFieldMapping()
	detectorFieldMapping.Analyzer = keyword.Name
	detectorFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("detector", detectorFieldMapping)

	// ID - stored but not analyzed
	idFieldMapping := bleve.NewTextFieldMapping()
	idFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("id", idFieldMapping)

	// Primary path - kept whole for display and lexicographic sorting
	primaryPathFieldMapping := bleve.NewTextFieldMapping()
	primaryPathFieldMapping.Analyzer = keyword.Name
	primaryPathFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("primary_path", primaryPathFieldMapping)

	// Batch ID - for looking up sibling operations from the same batch
	batchIDFieldMapping := bleve.NewTextFieldMapping()
	batchIDFieldMapping.Analyzer = keyword.Name
	batchIDFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("batch_id", batchIDFieldMapping)

	// Watch root - for scoping results to one watched tree
	watchRootFieldMapping := bleve.NewTextFieldMapping()
	watchRootFieldMapping.Analyzer = keyword.Name
	watchRootFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("watch_root", watchRootFieldMapping)

	// Ancestor directories - exact terms for directory-scoped filtering.
	// Filter only, never retrieved
	dirPathsFieldMapping := bleve.NewTextFieldMapping()
	dirPathsFieldMapping.Analyzer = keyword.Name
	dirPathsFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("dir_paths", dirPathsFieldMapping)

	// --- Numeric fields (range queries, sorting) ---

	// Batch size - for range filtering
	batchSizeFieldMapping := bleve.NewNumericFieldMapping()
	batchSizeFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("batch_size", batchSizeFieldMapping)

	// Detection time - for sorting by recency and time-window filtering
	detectedAtFieldMapping := bleve.NewNumericFieldMapping()
	detectedAtFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("detected_at", detectedAtFieldMapping)

	// Register the document mapping
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping, nil
}
