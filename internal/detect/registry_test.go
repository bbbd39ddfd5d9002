package detect

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fsintent/fsintent-server/internal/domain"
)

func noopDetector(batch []domain.Event) (*domain.FileOperation, error) {
	return nil, nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	err := r.Register("alpha", 50, "first", DetectorFunc(noopDetector))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	entry, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", entry.Name)
	assert.Equal(t, 50, entry.Priority)
	assert.Equal(t, "first", entry.Description)
	assert.True(t, entry.Enabled)
}

func TestRegistry_RegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		priority int
		wantErr  bool
	}{
		{"lower bound", 0, false},
		{"upper bound", 100, false},
		{"below range", -1, true},
		{"above range", 101, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			err := r.Register("d", tt.priority, "", DetectorFunc(noopDetector))
			if tt.wantErr {
				var invalid *InvalidPriorityError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.priority, invalid.Priority)
				assert.Equal(t, 0, r.Len())
			} else {
				require.NoError(t, err)
			}
		})
	}

	t.Run("nil detector", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register("d", 50, "", nil))
	})
}

func TestRegistry_DuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("dup", 40, "original", DetectorFunc(noopDetector)))

	// Same name, same priority: silent no-op, original entry untouched.
	require.NoError(t, r.Register("dup", 40, "reworded", DetectorFunc(noopDetector)))
	assert.Equal(t, 1, r.Len())
	entry, _ := r.Get("dup")
	assert.Equal(t, "original", entry.Description)

	// Same name, different priority: rejected, registry unchanged.
	err := r.Register("dup", 41, "", DetectorFunc(noopDetector))
	var dup *DuplicateDetectorError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "dup", dup.Name)
	assert.Equal(t, 40, dup.Existing)
	assert.Equal(t, 41, dup.Proposed)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_AllOrdering(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("low", 10, "", DetectorFunc(noopDetector)))
	require.NoError(t, r.Register("zeta", 50, "", DetectorFunc(noopDetector)))
	require.NoError(t, r.Register("alpha", 50, "", DetectorFunc(noopDetector)))
	require.NoError(t, r.Register("high", 90, "", DetectorFunc(noopDetector)))

	var names []string
	for _, entry := range r.All() {
		names = append(names, entry.Name)
	}

	// Priority descending; ties run in registration order, so zeta stays
	// ahead of alpha despite sorting after it by name.
	assert.Equal(t, []string{"high", "zeta", "alpha", "low"}, names)
}

func TestRegistry_AllSnapshot(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("one", 50, "", DetectorFunc(noopDetector)))

	snapshot := r.All()
	require.NoError(t, r.Register("two", 60, "", DetectorFunc(noopDetector)))

	assert.Len(t, snapshot, 1)
	assert.Len(t, r.All(), 2)
}

func TestRegistry_SetEnabled(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("mutable", 30, "", DetectorFunc(noopDetector)))

	require.NoError(t, r.SetEnabled("mutable", false))
	entry, _ := r.Get("mutable")
	assert.False(t, entry.Enabled)

	require.NoError(t, r.SetEnabled("mutable", true))
	entry, _ = r.Get("mutable")
	assert.True(t, entry.Enabled)

	err := r.SetEnabled("ghost", false)
	assert.ErrorIs(t, err, ErrUnknownDetector)
}

func TestRegistry_Clear(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("a", 10, "", DetectorFunc(noopDetector)))
	require.NoError(t, r.Register("b", 20, "", DetectorFunc(noopDetector)))

	r.Clear()

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.All())
	_, ok := r.Get("a")
	assert.False(t, ok)

	// Names freed by Clear can be reused.
	require.NoError(t, r.Register("a", 99, "", DetectorFunc(noopDetector)))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				for _, entry := range r.All() {
					_ = entry.Priority
				}
			}
		}()
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("extra-%d", i)
			for range 100 {
				_ = r.Register(name, 20, "", DetectorFunc(noopDetector))
				_, _ = r.Get(name)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, len(builtins())+8, r.Len())
}
