package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/fsintent/fsintent-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamOperations_ChronologicalOrder(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	// Insert out of order; the time index puts the stream back in order.
	for _, i := range []int{2, 0, 3, 1} {
		rec := journalRecord(
			fmt.Sprintf("op_%d", i),
			base.Add(time.Duration(i)*time.Minute),
			domain.OpSimpleOperation,
			"simple_operation",
			fmt.Sprintf("/data/file%d.txt", i),
		)
		require.NoError(t, s.AppendOperation(ctx, rec))
	}

	var ids []string
	for rec, err := range s.StreamOperations(ctx) {
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}

	assert.Equal(t, []string{"op_0", "op_1", "op_2", "op_3"}, ids)
}

func TestStreamOperations_EarlyTermination(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := range 5 {
		rec := journalRecord(
			fmt.Sprintf("op_%d", i),
			base.Add(time.Duration(i)*time.Minute),
			domain.OpSimpleOperation,
			"simple_operation",
			fmt.Sprintf("/data/file%d.txt", i),
		)
		require.NoError(t, s.AppendOperation(ctx, rec))
	}

	var count int
	for _, err := range s.StreamOperations(ctx) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}

	assert.Equal(t, 2, count)
}

func TestStreamWatches(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, s.CreateWatch(ctx, testWatchRoot("wr_1", "/projects/docs")))
	require.NoError(t, s.CreateWatch(ctx, testWatchRoot("wr_2", "/projects/media")))

	var count int
	for w, err := range s.StreamWatches(ctx) {
		require.NoError(t, err)
		assert.NotEmpty(t, w.Path)
		count++
	}

	assert.Equal(t, 2, count)
}

func TestBatchWriter_BulkImport(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	bw := s.NewBatchWriter(0)
	for i := range 10 {
		rec := journalRecord(
			fmt.Sprintf("op_%d", i),
			base.Add(time.Duration(i)*time.Second),
			domain.OpSimpleOperation,
			"simple_operation",
			fmt.Sprintf("/data/file%d.txt", i),
		)
		require.NoError(t, bw.AppendOperation(ctx, rec))
	}
	assert.Equal(t, 10, bw.Count())
	require.NoError(t, bw.Flush())

	// Every imported record is readable through the normal paths.
	got, err := s.GetOperation(ctx, "op_7")
	require.NoError(t, err)
	assert.Equal(t, "op_7", got.ID)

	var streamed int
	for _, err := range s.StreamOperations(ctx) {
		require.NoError(t, err)
		streamed++
	}
	assert.Equal(t, 10, streamed)
}

func TestBatchWriter_Cancel(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()

	bw := s.NewBatchWriter(0)
	rec := journalRecord("op_1", time.Now(), domain.OpSimpleOperation, "simple_operation", "/data/a.txt")
	require.NoError(t, bw.AppendOperation(ctx, rec))
	bw.Cancel()

	// Nothing was committed.
	_, err := s.GetOperation(ctx, "op_1")
	require.Error(t, err)
}
