package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Server: ServerConfig{Port: "8484", MaxConns: 256},
		Store:  StoreConfig{DataDir: "/some/path"},
		Correlate: CorrelateConfig{
			IdleGap:   500 * time.Millisecond,
			MaxSpan:   2 * time.Second,
			MaxEvents: 256,
		},
		Rate: RateConfig{RPS: 50, Burst: 100},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_AllEnvironments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_AllLogLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"error", true},
		{"DEBUG", true},  // case insensitive
		{"trace", false}, // not supported
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := validConfig()
			cfg.Logger.Level = tt.level

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_EmptyDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.Store.DataDir = ""

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "data dir cannot be empty")
}

func TestValidate_CorrelationWindows(t *testing.T) {
	tests := []struct {
		name      string
		idleGap   time.Duration
		maxSpan   time.Duration
		maxEvents int
		valid     bool
	}{
		{"defaults", 500 * time.Millisecond, 2 * time.Second, 256, true},
		{"equal gap and span", time.Second, time.Second, 10, true},
		{"zero idle gap", 0, 2 * time.Second, 256, false},
		{"span below gap", time.Second, 500 * time.Millisecond, 256, false},
		{"zero max events", 500 * time.Millisecond, 2 * time.Second, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Correlate.IdleGap = tt.idleGap
			cfg.Correlate.MaxSpan = tt.maxSpan
			cfg.Correlate.MaxEvents = tt.maxEvents

			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_RateLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Rate.RPS = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Rate.Burst = cfg.Rate.RPS - 1
	assert.Error(t, cfg.Validate())
}

func TestValidate_NegativeRetention(t *testing.T) {
	cfg := validConfig()
	cfg.Store.RetentionDays = -1

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retention days")
}

func TestAddr(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, ":8484", cfg.Addr())

	cfg.Server.Host = "127.0.0.1"
	assert.Equal(t, "127.0.0.1:8484", cfg.Addr())
}

func TestExpandDataDir_EmptyUsesDefault(t *testing.T) {
	cfg := &Config{}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	expected := filepath.Join(homeDir, ".local", "share", "fsintent")
	assert.Equal(t, expected, cfg.Store.DataDir)
}

func TestExpandDataDir_TildeExpansion(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{DataDir: "~/my-data"},
	}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "my-data"), cfg.Store.DataDir)
}

func TestExpandDataDir_AbsolutePath(t *testing.T) {
	cfg := &Config{
		Store: StoreConfig{DataDir: "/absolute/path/to/data"},
	}

	err := cfg.expandDataDir()
	require.NoError(t, err)

	assert.Equal(t, "/absolute/path/to/data", cfg.Store.DataDir)
}

func TestExpandWatchPaths(t *testing.T) {
	cfg := &Config{
		Watch: WatchConfig{Paths: []string{"~/projects", "/var/data", "relative/dir"}},
	}

	err := cfg.expandWatchPaths()
	require.NoError(t, err)

	homeDir, _ := os.UserHomeDir() //nolint:errcheck // Test setup
	assert.Equal(t, filepath.Join(homeDir, "projects"), cfg.Watch.Paths[0])
	assert.Equal(t, "/var/data", cfg.Watch.Paths[1])
	assert.True(t, filepath.IsAbs(cfg.Watch.Paths[2]))
}

func TestGetConfigValue_Precedence(t *testing.T) {
	// Flag value takes priority.
	result := getConfigValue("flag-value", "FSINTENT_TEST_KEY", "default-value")
	assert.Equal(t, "flag-value", result)

	// Env var when flag is empty.
	os.Setenv("FSINTENT_TEST_KEY", "env-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("FSINTENT_TEST_KEY")      //nolint:errcheck // Test cleanup

	result = getConfigValue("", "FSINTENT_TEST_KEY", "default-value")
	assert.Equal(t, "env-value", result)

	// Default when both are empty.
	result = getConfigValue("", "FSINTENT_NONEXISTENT_KEY", "default-value")
	assert.Equal(t, "default-value", result)
}

func TestGetListConfigValue(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		fallback []string
		want     []string
	}{
		{"empty uses default", "", []string{"*"}, []string{"*"}},
		{"single value", "/data", nil, []string{"/data"}},
		{"multiple values", "/data,/home/me", nil, []string{"/data", "/home/me"}},
		{"whitespace trimmed", " /data , /tmp ", nil, []string{"/data", "/tmp"}},
		{"blank elements dropped", ",,/data,", nil, []string{"/data"}},
		{"only blanks falls back", ", ,", []string{"*"}, []string{"*"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := getListConfigValue(tt.value, "FSINTENT_NONEXISTENT_KEY", tt.fallback)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDurationValue(t *testing.T) {
	d, err := parseDurationValue("750ms", "FSINTENT_NONEXISTENT_KEY", "500ms")
	require.NoError(t, err)
	assert.Equal(t, 750*time.Millisecond, d)

	d, err = parseDurationValue("", "FSINTENT_NONEXISTENT_KEY", "2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = parseDurationValue("not-a-duration", "FSINTENT_NONEXISTENT_KEY", "1s")
	assert.Error(t, err)
}

func TestLoadEnvFile_ValidFile(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `# Test env file
FSINTENT_ENV=staging
FSINTENT_LOG_LEVEL=debug
FSINTENT_DATA_DIR=/test/path
# Comment line
QUOTED_VALUE="some value"
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	keys := []string{"FSINTENT_ENV", "FSINTENT_LOG_LEVEL", "FSINTENT_DATA_DIR", "QUOTED_VALUE"}
	for _, k := range keys {
		os.Unsetenv(k) //nolint:errcheck // Test setup
	}
	defer func() {
		for _, k := range keys {
			os.Unsetenv(k) //nolint:errcheck // Test cleanup
		}
	}()

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "staging", os.Getenv("FSINTENT_ENV"))
	assert.Equal(t, "debug", os.Getenv("FSINTENT_LOG_LEVEL"))
	assert.Equal(t, "/test/path", os.Getenv("FSINTENT_DATA_DIR"))
	assert.Equal(t, "some value", os.Getenv("QUOTED_VALUE"))
}

func TestLoadEnvFile_InvalidFormat(t *testing.T) {
	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	content := `VALID_KEY=valid_value
INVALID LINE WITHOUT EQUALS
`
	err := os.WriteFile(envFile, []byte(content), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadEnvFile_NonExistentFile(t *testing.T) {
	err := loadEnvFile("/nonexistent/file/.env")
	assert.Error(t, err)
}

func TestLoadEnvFile_ExistingEnvVarsNotOverwritten(t *testing.T) {
	os.Setenv("FSINTENT_TEST_VAR", "original-value") //nolint:errcheck // Test setup
	defer os.Unsetenv("FSINTENT_TEST_VAR")           //nolint:errcheck // Test cleanup

	tmpDir := t.TempDir()
	envFile := filepath.Join(tmpDir, ".env")

	err := os.WriteFile(envFile, []byte(`FSINTENT_TEST_VAR=new-value`), 0o644)
	require.NoError(t, err)

	err = loadEnvFile(envFile)
	require.NoError(t, err)

	assert.Equal(t, "original-value", os.Getenv("FSINTENT_TEST_VAR"))
}
