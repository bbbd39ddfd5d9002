package search

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string   // User's search query
	Types []string // Operation type names to include (empty = all)

	// Filters
	Detectors    []string  // Filter by exact detector names
	WatchRoot    string    // Filter to one watched tree
	Dir          string    // Filter to operations that touched paths under this directory
	Since        time.Time // Lower bound on detection time, inclusive (zero = unbounded)
	Until        time.Time // Upper bound on detection time, exclusive (zero = unbounded)
	MinBatchSize int       // Minimum size of the originating batch
	MaxBatchSize int       // Maximum size of the originating batch

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "path", "recent", "batch_size"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool     // Include facet counts in results
	FacetFields   []string // Which fields to facet on
	Highlight     bool     // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		Offset:        0,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		FacetFields:   []string{"type", "detector"},
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit represents a single search result.
type SearchHit struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	Score       float64           `json:"score"`
	Name        string            `json:"name"`
	PrimaryPath string            `json:"primary_path"`
	Detector    string            `json:"detector,omitempty"`
	WatchRoot   string            `json:"watch_root,omitempty"`
	BatchID     string            `json:"batch_id,omitempty"`
	BatchSize   int               `json:"batch_size,omitempty"`
	DetectedAt  int64             `json:"detected_at"` // Unix millis
	Highlights  map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types     []FacetCount `json:"types,omitempty"`
	Detectors []FacetCount `json:"detectors,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Build the query
	searchQuery := buildSearchQuery(params)

	// Create search request
	searchRequest := bleve.NewSearchRequestOptions(searchQuery, params.Limit, params.Offset, false)

	// Add sorting
	addSorting(searchRequest, params)

	// Add facets
	if params.IncludeFacets {
		addFacets(searchRequest, params)
	}

	// Add highlighting
	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("paths")
	}

	// Request stored fields
	searchRequest.Fields = []string{
		"id", "type", "name", "primary_path", "detector",
		"watch_root", "batch_id", "batch_size", "detected_at",
	}

	// Execute search
	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	// Convert results
	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{
			ID:    hit.ID,
			Score: hit.Score,
		}

		// Extract stored fields
		if t, ok := hit.Fields["type"].(string); ok {
			searchHit.Type = t
		}
		if n, ok := hit.Fields["name"].(string); ok {
			searchHit.Name = n
		}
		if p, ok := hit.Fields["primary_path"].(string); ok {
			searchHit.PrimaryPath = p
		}
		if d, ok := hit.Fields["detector"].(string); ok {
			searchHit.Detector = d
		}
		if wr, ok := hit.Fields["watch_root"].(string); ok {
			searchHit.WatchRoot = wr
		}
		if b, ok := hit.Fields["batch_id"].(string); ok {
			searchHit.BatchID = b
		}
		if bs, ok := hit.Fields["batch_size"].(float64); ok {
			searchHit.BatchSize = int(bs)
		}
		if at, ok := hit.Fields["detected_at"].(float64); ok {
			searchHit.DetectedAt = int64(at)
		}

		// Extract highlights
		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	// Extract facets
	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	// Main text query
	// Search strategy:
	// - Match on the base file name with the highest boost, so searching
	//   "nginx.conf" surfaces operations on that file first
	// - Match on affected path segments with a lower boost, so "nginx"
	//   still finds operations whose temp or backup names carried it
	// - Fuzzy and prefix variants of the name match absorb typos and
	//   partial input
	if params.Query != "" {
		textQueries := []query.Query{}

		// File name match with highest boost
		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		// Path segment match across every affected path
		pathsMatch := bleve.NewMatchQuery(params.Query)
		pathsMatch.SetField("paths")
		pathsMatch.SetBoost(1.5)
		textQueries = append(textQueries, pathsMatch)

		// Add fuzzy matching for typo tolerance on name
		fuzzyQuery := bleve.NewFuzzyQuery(params.Query)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		// Combine with OR (match any field)
		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	// Operation type filter
	if len(params.Types) > 0 {
		typeQueries := make([]query.Query, len(params.Types))
		for i, t := range params.Types {
			tq := bleve.NewTermQuery(t)
			tq.SetField("type")
			typeQueries[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(typeQueries...))
	}

	// Detector filter (exact match, OR across names)
	if len(params.Detectors) > 0 {
		detectorQueries := make([]query.Query, len(params.Detectors))
		for i, d := range params.Detectors {
			dq := bleve.NewTermQuery(d)
			dq.SetField("detector")
			detectorQueries[i] = dq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(detectorQueries...))
	}

	// Watch root filter
	if params.WatchRoot != "" {
		wq := bleve.NewTermQuery(params.WatchRoot)
		wq.SetField("watch_root")
		queries = append(queries, wq)
	}

	// Directory filter. Exact term against the expanded ancestor set, which
	// respects path boundaries where a string prefix would not.
	if params.Dir != "" {
		dir := params.Dir
		if len(dir) > 1 {
			dir = strings.TrimSuffix(dir, "/")
		}
		dq := bleve.NewTermQuery(dir)
		dq.SetField("dir_paths")
		queries = append(queries, dq)
	}

	// Detection time window
	if !params.Since.IsZero() || !params.Until.IsZero() {
		min := float64(0)
		max := math.MaxFloat64
		if !params.Since.IsZero() {
			min = float64(params.Since.UnixMilli())
		}
		if !params.Until.IsZero() {
			max = float64(params.Until.UnixMilli())
		}
		rangeQuery := bleve.NewNumericRangeQuery(&min, &max)
		rangeQuery.SetField("detected_at")
		queries = append(queries, rangeQuery)
	}

	// Batch size range filter
	if params.MinBatchSize > 0 || params.MaxBatchSize > 0 {
		min := float64(params.MinBatchSize)
		max := float64(params.MaxBatchSize)
		if params.MaxBatchSize == 0 {
			max = math.MaxFloat64
		}
		rangeQuery := bleve.NewNumericRangeQuery(&min, &max)
		rangeQuery.SetField("batch_size")
		queries = append(queries, rangeQuery)
	}

	// Combine all queries with AND
	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	switch params.SortBy {
	case "path":
		if params.SortOrder == "desc" {
			req.SortBy([]string{"-primary_path"})
		} else {
			req.SortBy([]string{"primary_path"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"detected_at"})
		} else {
			req.SortBy([]string{"-detected_at"})
		}
	case "batch_size":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"batch_size"})
		} else {
			req.SortBy([]string{"-batch_size"})
		}
	default:
		// Relevance (score) is default - Bleve handles this
		req.SortBy([]string{"-_score"})
	}
}

// addFacets configures facet requests.
func addFacets(req *bleve.SearchRequest, params SearchParams) {
	for _, field := range params.FacetFields {
		facetReq := bleve.NewFacetRequest(field, 20) // Top 20 values
		req.AddFacet(field, facetReq)
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	if typeFacet, ok := result.Facets["type"]; ok {
		for _, term := range typeFacet.Terms.Terms() {
			facets.Types = append(facets.Types, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	if detectorFacet, ok := result.Facets["detector"]; ok {
		for _, term := range detectorFacet.Terms.Terms() {
			facets.Detectors = append(facets.Detectors, FacetCount{
				Value: term.Term,
				Count: term.Count,
			})
		}
	}

	return facets
}
