package search

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestIndex creates a temporary search index for testing.
func setupTestIndex(t *testing.T) (*SearchIndex, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "search-test-*")
	require.NoError(t, err)

	index, err := NewSearchIndex(Options{
		DataPath: tmpDir,
		Logger:   nil,
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = index.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return index, cleanup
}

func TestNewSearchIndex(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_IndexDocument(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &SearchDocument{
		ID:          "op_123",
		Type:        "AtomicSave",
		Name:        "nginx.conf",
		PrimaryPath: "/etc/nginx/nginx.conf",
		Detector:    "atomic_save",
	}

	err := index.IndexDocument(doc)
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestSearchIndex_IndexDocuments_Batch(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "one.txt"},
		{ID: "op_2", Type: "Replace", Name: "two.txt"},
		{ID: "op_3", Type: "SafeWrite", Name: "three.txt"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestSearchIndex_DeleteDocument(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &SearchDocument{
		ID:   "op_123",
		Type: "AtomicSave",
		Name: "nginx.conf",
	}

	err := index.IndexDocument(doc)
	require.NoError(t, err)

	err = index.DeleteDocument("op_123")
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Search_Basic(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	// Two operations touch nginx paths, one is unrelated
	docs := []*SearchDocument{
		{
			ID:          "op_1",
			Type:        "AtomicSave",
			Name:        "nginx.conf",
			PrimaryPath: "/etc/nginx/nginx.conf",
			Paths:       []string{"/etc/nginx/.nginx.conf.tmp1", "/etc/nginx/nginx.conf"},
		},
		{
			ID:          "op_2",
			Type:        "DirectModification",
			Name:        "default.conf",
			PrimaryPath: "/etc/nginx/sites/default.conf",
			Paths:       []string{"/etc/nginx/sites/default.conf"},
		},
		{
			ID:          "op_3",
			Type:        "Replace",
			Name:        "report.pdf",
			PrimaryPath: "/home/sam/report.pdf",
			Paths:       []string{"/home/sam/report.pdf"},
		},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	// "nginx" hits op_1 by file name and op_2 by path segment
	result, err := index.Search(ctx, SearchParams{
		Query: "nginx",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	assert.Len(t, result.Hits, 2)
}

func TestSearchIndex_Search_DottedName(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &SearchDocument{
		ID:          "op_1",
		Type:        "AtomicSave",
		Name:        "app.yaml",
		PrimaryPath: "/srv/app/app.yaml",
	}

	err := index.IndexDocument(doc)
	require.NoError(t, err)

	ctx := context.Background()

	// Both halves of a dotted file name are searchable on their own
	for _, q := range []string{"app", "yaml", "app.yaml"} {
		result, err := index.Search(ctx, SearchParams{Query: q, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, uint64(1), result.Total, "query %q", q)
	}
}

func TestSearchIndex_Search_ByType(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "a.txt"},
		{ID: "op_2", Type: "Replace", Name: "b.txt"},
		{ID: "op_3", Type: "BatchUpdate", Name: "c.txt"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	// Filter to atomic saves only
	result, err := index.Search(ctx, SearchParams{
		Query: "",
		Types: []string{"AtomicSave"},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_1", result.Hits[0].ID)
}

func TestSearchIndex_Search_ByDetector(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "a.txt", Detector: "atomic_save"},
		{ID: "op_2", Type: "AtomicSave", Name: "b.txt", Detector: "temp_rename"},
		{ID: "op_3", Type: "Replace", Name: "c.txt", Detector: "replace"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	result, err := index.Search(ctx, SearchParams{
		Query:     "",
		Detectors: []string{"temp_rename"},
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_2", result.Hits[0].ID)
}

func TestSearchIndex_Search_Prefix(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	doc := &SearchDocument{
		ID:   "op_1",
		Type: "AtomicSave",
		Name: "configuration.yaml",
	}

	err := index.IndexDocument(doc)
	require.NoError(t, err)

	ctx := context.Background()

	// Search with prefix - should find result
	result, err := index.Search(ctx, SearchParams{
		Query: "config", // Prefix of configuration
		Limit: 10,
	})
	require.NoError(t, err)
	// Prefix search should find the result
	assert.GreaterOrEqual(t, result.Total, uint64(1))
}

func TestSearchIndex_Search_Dir(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{
			ID:       "op_1",
			Type:     "AtomicSave",
			Name:     "a.md",
			Paths:    []string{"/projects/docs/a.md"},
			DirPaths: []string{"/projects/docs", "/projects"},
		},
		{
			ID:       "op_2",
			Type:     "Replace",
			Name:     "main.go",
			Paths:    []string{"/projects/src/main.go"},
			DirPaths: []string{"/projects/src", "/projects"},
		},
		{
			ID:       "op_3",
			Type:     "AtomicSave",
			Name:     "old.md",
			Paths:    []string{"/projects/docs-archive/old.md"},
			DirPaths: []string{"/projects/docs-archive", "/projects"},
		},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	// Scope to one directory - sibling dirs with a shared name prefix
	// must not leak in
	result, err := index.Search(ctx, SearchParams{
		Query: "",
		Dir:   "/projects/docs",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_1", result.Hits[0].ID)

	// Scope to the parent - should find all three
	result, err = index.Search(ctx, SearchParams{
		Query: "",
		Dir:   "/projects",
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Total)
}

func TestSearchIndex_Search_WatchRoot(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "a.txt", WatchRoot: "wr_1"},
		{ID: "op_2", Type: "AtomicSave", Name: "b.txt", WatchRoot: "wr_2"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	result, err := index.Search(ctx, SearchParams{
		Query:     "",
		WatchRoot: "wr_1",
		Limit:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_1", result.Hits[0].ID)
}

func TestSearchIndex_Search_TimeWindow(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "a.txt", DetectedAt: base.UnixMilli()},
		{ID: "op_2", Type: "AtomicSave", Name: "b.txt", DetectedAt: base.Add(time.Hour).UnixMilli()},
		{ID: "op_3", Type: "AtomicSave", Name: "c.txt", DetectedAt: base.Add(2 * time.Hour).UnixMilli()},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	// Window around the middle document only
	result, err := index.Search(ctx, SearchParams{
		Query: "",
		Since: base.Add(30 * time.Minute),
		Until: base.Add(90 * time.Minute),
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_2", result.Hits[0].ID)
}

func TestSearchIndex_Search_BatchSize(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "SimpleOperation", Name: "a.txt", BatchSize: 1},
		{ID: "op_2", Type: "BatchUpdate", Name: "b.txt", BatchSize: 5},
		{ID: "op_3", Type: "BatchUpdate", Name: "c.txt", BatchSize: 40},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	// Filter by batch size range
	result, err := index.Search(ctx, SearchParams{
		Query:        "",
		MinBatchSize: 3,
		MaxBatchSize: 10,
		Limit:        10,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
	assert.Equal(t, "op_2", result.Hits[0].ID)
}

func TestSearchIndex_Search_Facets(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	docs := []*SearchDocument{
		{ID: "op_1", Type: "AtomicSave", Name: "a.txt", Detector: "atomic_save"},
		{ID: "op_2", Type: "AtomicSave", Name: "b.txt", Detector: "temp_rename"},
		{ID: "op_3", Type: "Replace", Name: "c.txt", Detector: "replace"},
	}

	err := index.IndexDocuments(docs)
	require.NoError(t, err)

	ctx := context.Background()

	result, err := index.Search(ctx, SearchParams{
		Query:         "",
		Limit:         10,
		IncludeFacets: true,
		FacetFields:   []string{"type", "detector"},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []FacetCount{
		{Value: "AtomicSave", Count: 2},
		{Value: "Replace", Count: 1},
	}, result.Facets.Types)
	assert.Len(t, result.Facets.Detectors, 3)
}

func TestSearchIndex_Rebuild(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	// Index a document
	doc := &SearchDocument{ID: "op_1", Type: "AtomicSave", Name: "a.txt"}
	err := index.IndexDocument(doc)
	require.NoError(t, err)

	// Verify it exists
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Rebuild - should clear the index
	err = index.Rebuild()
	require.NoError(t, err)

	// Verify it's empty
	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearchIndex_Persistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "search-persist-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	// Create index and add document
	index1, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)

	doc := &SearchDocument{ID: "op_1", Type: "AtomicSave", Name: "report.txt"}
	err = index1.IndexDocument(doc)
	require.NoError(t, err)

	err = index1.Close()
	require.NoError(t, err)

	// Reopen index and verify document is still there
	index2, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer index2.Close()

	count, err := index2.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	// Verify we can search for it
	ctx := context.Background()
	result, err := index2.Search(ctx, SearchParams{Query: "report", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), result.Total)
}

func TestRecordToSearchDocument(t *testing.T) {
	detectedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := &domain.OperationRecord{
		ID:           "op_abc123",
		BatchID:      "batch_xyz",
		WatchRoot:    "wr_1",
		Type:         domain.OpAtomicSave,
		PrimaryPath:  "/etc/nginx/nginx.conf",
		DetectorName: "atomic_save",
		AffectedPaths: []string{
			"/etc/nginx/.nginx.conf.tmp1",
			"/etc/nginx/nginx.conf",
		},
		BatchSize:  3,
		DetectedAt: detectedAt,
	}

	doc := RecordToSearchDocument(rec)

	assert.Equal(t, "op_abc123", doc.ID)
	assert.Equal(t, "AtomicSave", doc.Type)
	assert.Equal(t, "nginx.conf", doc.Name)
	assert.Equal(t, "/etc/nginx/nginx.conf", doc.PrimaryPath)
	assert.Equal(t, "atomic_save", doc.Detector)
	assert.Equal(t, "batch_xyz", doc.BatchID)
	assert.Equal(t, "wr_1", doc.WatchRoot)
	assert.Equal(t, rec.AffectedPaths, doc.Paths)
	assert.ElementsMatch(t, []string{"/etc/nginx", "/etc"}, doc.DirPaths)
	assert.Equal(t, 3, doc.BatchSize)
	assert.Equal(t, detectedAt.UnixMilli(), doc.DetectedAt)
}

func TestAncestorDirs(t *testing.T) {
	// Shared ancestors are deduplicated
	dirs := ancestorDirs([]string{
		"/etc/nginx/nginx.conf",
		"/etc/nginx/nginx.conf.bak",
	})
	assert.ElementsMatch(t, []string{"/etc/nginx", "/etc"}, dirs)

	// A file directly under the root contributes nothing
	assert.Nil(t, ancestorDirs([]string{"/top.txt"}))

	// Relative paths keep their leading segment
	assert.ElementsMatch(t, []string{"data"}, ancestorDirs([]string{"data/x.txt"}))
}

func TestSearchIndex_LargeBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large batch test in short mode")
	}

	index, cleanup := setupTestIndex(t)
	defer cleanup()

	// Enough documents to exercise chunking (batch size is 500)
	docs := make([]*SearchDocument, 1000)
	for i := range docs {
		docs[i] = &SearchDocument{
			ID:   fmt.Sprintf("op_%04d", i),
			Type: "AtomicSave",
			Name: fmt.Sprintf("file_%04d.txt", i),
		}
	}

	start := time.Now()
	err := index.IndexDocuments(docs)
	require.NoError(t, err)
	t.Logf("Indexed 1000 documents in %v", time.Since(start))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), count)
}

func TestDefaultSearchParams(t *testing.T) {
	params := DefaultSearchParams()

	assert.Equal(t, 20, params.Limit)
	assert.Equal(t, 0, params.Offset)
	assert.Equal(t, "relevance", params.SortBy)
	assert.Equal(t, []string{"type", "detector"}, params.FacetFields)
	assert.True(t, params.IncludeFacets)
	assert.True(t, params.Highlight)
}
