package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptions_Defaults(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	assert.Equal(t, 100*time.Millisecond, opts.MoveGrace, "Default move grace should be 100ms")
	assert.Equal(t, 100*time.Millisecond, opts.WriteSettle, "Default write settle should be 100ms")
	assert.Empty(t, opts.IgnorePatterns, "Nothing should be ignored by default")
	assert.Empty(t, opts.IgnorePaths, "Nothing should be ignored by default")
}

func TestOptions_CustomValues(t *testing.T) {
	opts := Options{
		MoveGrace:      250 * time.Millisecond,
		WriteSettle:    50 * time.Millisecond,
		IgnorePatterns: []string{"*.bak"},
	}
	opts.setDefaults()

	assert.Equal(t, 250*time.Millisecond, opts.MoveGrace, "Custom move grace should be preserved")
	assert.Equal(t, 50*time.Millisecond, opts.WriteSettle, "Custom write settle should be preserved")
	assert.Contains(t, opts.IgnorePatterns, "*.bak", "Custom patterns should be preserved")
}

func TestOptions_ShouldIgnore_Patterns(t *testing.T) {
	opts := Options{
		IgnorePatterns: []string{"*.swp.bak", "4913"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"pattern match", "/data/file.swp.bak", true},
		{"vim probe file", "/data/4913", true},
		{"temp file passes", "/data/file.tmp", false},
		{"hidden file passes", "/data/.hidden", false},
		{"backup file passes", "/data/file~", false},
		{"normal file passes", "/data/report.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := opts.shouldIgnore(tt.path)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestOptions_ShouldIgnore_Paths(t *testing.T) {
	opts := Options{
		IgnorePaths: []string{"/home/me/.local/share/fsintent"},
	}
	opts.setDefaults()

	tests := []struct {
		name   string
		path   string
		expect bool
	}{
		{"exact prefix", "/home/me/.local/share/fsintent", true},
		{"inside prefix", "/home/me/.local/share/fsintent/journal/000001.vlog", true},
		{"sibling with shared name prefix", "/home/me/.local/share/fsintent-other/x", false},
		{"outside prefix", "/home/me/projects/a.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := opts.shouldIgnore(tt.path)
			assert.Equal(t, tt.expect, got)
		})
	}
}

func TestOptions_ShouldIgnore_NothingByDefault(t *testing.T) {
	opts := Options{}
	opts.setDefaults()

	// Temp, hidden, and backup names all flow through: the classifier
	// needs them.
	assert.False(t, opts.shouldIgnore("/data/.goutputstream-ABC123"))
	assert.False(t, opts.shouldIgnore("/data/report.txt.tmp"))
	assert.False(t, opts.shouldIgnore("/data/report.txt~"))
	assert.False(t, opts.shouldIgnore("/data/.git/index.lock"))
}
