// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Store     StoreConfig
	Watch     WatchConfig
	Correlate CorrelateConfig
	Auth      AuthConfig
	Search    SearchConfig
	Rate      RateConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level  string
	Format string // json, pretty, or empty for auto-detect
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Name          string
	Host          string        // Bind address (default: all interfaces)
	Port          string        // Server port (default: 8484)
	CORSOrigins   []string      // Allowed CORS origins (default: *)
	ReadTimeout   time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout  time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout   time.Duration // HTTP idle timeout (default: 60s)
	MaxConns      int           // Concurrent connection cap on the listener (default: 256)
	AdvertiseMDNS bool          // Advertise via mDNS/Zeroconf (default: true)
}

// StoreConfig holds journal storage configuration.
type StoreConfig struct {
	// DataDir is the directory holding the badger journal and search index
	// (default: ~/.local/share/fsintent).
	DataDir string
	// RetentionDays prunes operation records older than this many days.
	// Zero keeps records forever.
	RetentionDays int
}

// WatchConfig holds filesystem watch configuration.
type WatchConfig struct {
	// Paths are watch roots registered at startup. More can be added via the API.
	Paths []string
	// Recursive watches subdirectories of each root (default: true).
	Recursive bool
}

// CorrelateConfig holds event windowing configuration.
type CorrelateConfig struct {
	// IdleGap closes a batch after this long without a new event (default: 500ms).
	IdleGap time.Duration
	// MaxSpan closes a batch once its first event is this old (default: 2s).
	MaxSpan time.Duration
	// MaxEvents closes a batch at this size regardless of timing (default: 256).
	MaxEvents int
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key for access tokens (32 bytes).
	// Set by auth.LoadOrGenerateKey in main, not from the environment.
	AccessTokenKey []byte
	// AccessTokenDuration bounds token lifetime (default: 15m).
	AccessTokenDuration time.Duration
	// BootstrapKey, when set, is accepted as an API key until a real one
	// is created. Meant for first-run provisioning only.
	BootstrapKey string
}

// SearchConfig holds full-text search configuration.
type SearchConfig struct {
	Enabled bool
}

// RateConfig holds API rate limiting configuration.
type RateConfig struct {
	RPS   int // Sustained requests per second per client (default: 50)
	Burst int // Burst allowance per client (default: 100)
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	// Define command-line flags.
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "", "Log format (json, pretty)")
	dataDir := flag.String("data-dir", "", "Directory for the operation journal and search index")
	watchPaths := flag.String("watch", "", "Comma-separated directories to watch at startup")
	watchRecursive := flag.String("recursive", "", "Watch subdirectories of each root (default: true)")
	serverName := flag.String("server-name", "", "Name for the server")

	// Server flags
	serverHost := flag.String("host", "", "Bind address (default: all interfaces)")
	serverPort := flag.String("port", "", "Server port (default: 8484)")
	corsOrigins := flag.String("cors-origins", "", "Comma-separated allowed CORS origins")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	maxConns := flag.String("max-conns", "", "Concurrent connection cap (default: 256)")
	advertiseMDNS := flag.String("advertise-mdns", "", "Advertise via mDNS/Zeroconf (default: true)")

	// Correlation flags
	idleGap := flag.String("idle-gap", "", "Batch idle gap (default: 500ms)")
	maxSpan := flag.String("max-span", "", "Batch max span (default: 2s)")
	maxEvents := flag.String("max-batch", "", "Batch max event count (default: 256)")

	// Auth flags
	tokenTTL := flag.String("token-ttl", "", "Access token lifetime (default: 15m)")
	bootstrapKey := flag.String("bootstrap-key", "", "Provisioning API key accepted until a real key exists")

	// Misc flags
	searchEnabled := flag.String("search", "", "Enable full-text operation search (default: true)")
	retentionDays := flag.String("retention-days", "", "Prune records older than this many days (0 = keep forever)")
	rateRPS := flag.String("rate-rps", "", "Per-client sustained requests per second (default: 50)")
	rateBurst := flag.String("rate-burst", "", "Per-client burst allowance (default: 100)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	// Parse flags but don't exit on error - we want to handle it gracefully.
	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	// Build config with proper precedence.
	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "FSINTENT_ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:  getConfigValue(*logLevel, "FSINTENT_LOG_LEVEL", "info"),
			Format: getConfigValue(*logFormat, "FSINTENT_LOG_FORMAT", ""),
		},
		Server: ServerConfig{
			Name:          getConfigValue(*serverName, "FSINTENT_SERVER_NAME", "fsintent"),
			Host:          getConfigValue(*serverHost, "FSINTENT_HOST", ""),
			Port:          getConfigValue(*serverPort, "FSINTENT_PORT", "8484"),
			CORSOrigins:   getListConfigValue(*corsOrigins, "FSINTENT_CORS_ORIGINS", []string{"*"}),
			MaxConns:      getIntConfigValue(*maxConns, "FSINTENT_MAX_CONNS", 256),
			AdvertiseMDNS: getBoolConfigValue(*advertiseMDNS, "FSINTENT_MDNS", true),
		},
		Store: StoreConfig{
			DataDir:       getConfigValue(*dataDir, "FSINTENT_DATA_DIR", ""),
			RetentionDays: getIntConfigValue(*retentionDays, "FSINTENT_RETENTION_DAYS", 0),
		},
		Watch: WatchConfig{
			Paths:     getListConfigValue(*watchPaths, "FSINTENT_WATCH_PATHS", nil),
			Recursive: getBoolConfigValue(*watchRecursive, "FSINTENT_WATCH_RECURSIVE", true),
		},
		Correlate: CorrelateConfig{
			MaxEvents: getIntConfigValue(*maxEvents, "FSINTENT_MAX_BATCH", 256),
		},
		Auth: AuthConfig{
			AccessTokenKey: nil, // Set by auth.LoadOrGenerateKey in main
			BootstrapKey:   getConfigValue(*bootstrapKey, "FSINTENT_BOOTSTRAP_KEY", ""),
		},
		Search: SearchConfig{
			Enabled: getBoolConfigValue(*searchEnabled, "FSINTENT_SEARCH", true),
		},
		Rate: RateConfig{
			RPS:   getIntConfigValue(*rateRPS, "FSINTENT_RATE_RPS", 50),
			Burst: getIntConfigValue(*rateBurst, "FSINTENT_RATE_BURST", 100),
		},
	}

	// Parse durations.
	var err error
	cfg.Correlate.IdleGap, err = parseDurationValue(*idleGap, "FSINTENT_IDLE_GAP", "500ms")
	if err != nil {
		return nil, fmt.Errorf("invalid idle gap: %w", err)
	}
	cfg.Correlate.MaxSpan, err = parseDurationValue(*maxSpan, "FSINTENT_MAX_SPAN", "2s")
	if err != nil {
		return nil, fmt.Errorf("invalid max span: %w", err)
	}
	cfg.Auth.AccessTokenDuration, err = parseDurationValue(*tokenTTL, "FSINTENT_TOKEN_TTL", "15m")
	if err != nil {
		return nil, fmt.Errorf("invalid token ttl: %w", err)
	}
	cfg.Server.ReadTimeout, err = parseDurationValue(*readTimeout, "FSINTENT_READ_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid read timeout: %w", err)
	}
	cfg.Server.WriteTimeout, err = parseDurationValue(*writeTimeout, "FSINTENT_WRITE_TIMEOUT", "15s")
	if err != nil {
		return nil, fmt.Errorf("invalid write timeout: %w", err)
	}
	cfg.Server.IdleTimeout, err = parseDurationValue(*idleTimeout, "FSINTENT_IDLE_TIMEOUT", "60s")
	if err != nil {
		return nil, fmt.Errorf("invalid idle timeout: %w", err)
	}

	// Expand and validate the data directory.
	if err := cfg.expandDataDir(); err != nil {
		return nil, fmt.Errorf("invalid data dir: %w", err)
	}

	// Expand watch roots.
	if err := cfg.expandWatchPaths(); err != nil {
		return nil, fmt.Errorf("invalid watch path: %w", err)
	}

	// Validate configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("FSINTENT_ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Store.DataDir == "" {
		return errors.New("data dir cannot be empty after expansion")
	}
	if c.Store.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative, got %d", c.Store.RetentionDays)
	}

	if c.Correlate.IdleGap <= 0 {
		return fmt.Errorf("idle gap must be positive, got %s", c.Correlate.IdleGap)
	}
	if c.Correlate.MaxSpan < c.Correlate.IdleGap {
		return fmt.Errorf("max span %s must not be shorter than idle gap %s", c.Correlate.MaxSpan, c.Correlate.IdleGap)
	}
	if c.Correlate.MaxEvents < 1 {
		return fmt.Errorf("max batch must be at least 1, got %d", c.Correlate.MaxEvents)
	}

	if c.Rate.RPS < 1 {
		return fmt.Errorf("rate rps must be at least 1, got %d", c.Rate.RPS)
	}
	if c.Rate.Burst < c.Rate.RPS {
		return fmt.Errorf("rate burst %d must not be below rps %d", c.Rate.Burst, c.Rate.RPS)
	}
	if c.Server.MaxConns < 1 {
		return fmt.Errorf("max conns must be at least 1, got %d", c.Server.MaxConns)
	}

	// Watch paths may be empty - roots can be added via the API.

	return nil
}

// Addr returns the host:port the server binds to.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	// Expand tilde.
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	// Make absolute if needed.
	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataDir expands ~ and makes the path absolute.
func (c *Config) expandDataDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, ".local", "share", "fsintent")

	expanded, err := expandPath(c.Store.DataDir, defaultPath)
	if err != nil {
		return err
	}
	c.Store.DataDir = expanded
	return nil
}

// expandWatchPaths expands ~ and makes each watch root absolute.
func (c *Config) expandWatchPaths() error {
	for i, p := range c.Watch.Paths {
		expanded, err := expandPath(p, "")
		if err != nil {
			return err
		}
		c.Watch.Paths[i] = expanded
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	// Priority 1: Command-line flag.
	if flagValue != "" {
		return flagValue
	}

	// Priority 2: Environment variable.
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	// Priority 3: Default value.
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getListConfigValue returns a comma-separated list from flag, env var, or default.
// Blank elements are dropped.
func getListConfigValue(flagValue, envKey string, defaultValue []string) []string {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	parts := strings.Split(strValue, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// parseDurationValue resolves flag/env/default precedence and parses the result.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", strValue, err)
	}
	return d, nil
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=value.
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present.
		value = strings.Trim(value, `"'`)

		// Only set if not already set (env vars take precedence over .env file).
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
