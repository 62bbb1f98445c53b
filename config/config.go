// Package config loads service settings from POLICY_* environment variables.
// cmd/server lets command-line flags override the loaded values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all configuration values for the policy service.
type Config struct {
	// ListenAddr is the address the HTTP server binds to.
	// Env: POLICY_LISTEN_ADDR
	// Default: ":8080"
	ListenAddr string

	// DBPath is the SQLite database path. ":memory:" keeps data in RAM.
	// Env: POLICY_DB_PATH
	// Default: "policies.db"
	DBPath string

	// LogLevel controls zerolog verbosity (trace, debug, info, warn, error).
	// Env: POLICY_LOG_LEVEL
	// Default: "info"
	LogLevel string

	// DevMode enables human-friendly console log output.
	// Env: POLICY_DEV_MODE
	// Default: false
	DevMode bool

	// MetricsEnabled exposes Prometheus metrics on /metrics.
	// Env: POLICY_METRICS_ENABLED
	// Default: true
	MetricsEnabled bool

	// DefaultPageSize is used when a list request has no size parameter.
	// Env: POLICY_DEFAULT_PAGE_SIZE
	// Default: 20
	DefaultPageSize int

	// MaxPageSize caps the size parameter of list requests.
	// Env: POLICY_MAX_PAGE_SIZE
	// Default: 2000
	MaxPageSize int

	// CORSOrigins is the comma-separated list of allowed origins.
	// Env: POLICY_CORS_ORIGINS
	CORSOrigins []string

	// ShutdownTimeout bounds graceful shutdown.
	// Env: POLICY_SHUTDOWN_TIMEOUT
	// Default: 30s
	ShutdownTimeout time.Duration
}

// Default returns the configuration used when no variable is set.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		DBPath:          "policies.db",
		LogLevel:        "info",
		MetricsEnabled:  true,
		DefaultPageSize: 20,
		MaxPageSize:     2000,
		CORSOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads configuration from environment variables, applying defaults
// where values are not set, and validates the result.
func Load() (Config, error) {
	d := Default()
	cfg := Config{
		ListenAddr:      envOrDefault("POLICY_LISTEN_ADDR", d.ListenAddr),
		DBPath:          envOrDefault("POLICY_DB_PATH", d.DBPath),
		LogLevel:        strings.ToLower(envOrDefault("POLICY_LOG_LEVEL", d.LogLevel)),
		DevMode:         envBool("POLICY_DEV_MODE", d.DevMode),
		MetricsEnabled:  envBool("POLICY_METRICS_ENABLED", d.MetricsEnabled),
		DefaultPageSize: envInt("POLICY_DEFAULT_PAGE_SIZE", d.DefaultPageSize),
		MaxPageSize:     envInt("POLICY_MAX_PAGE_SIZE", d.MaxPageSize),
		CORSOrigins:     envList("POLICY_CORS_ORIGINS", d.CORSOrigins),
		ShutdownTimeout: envDuration("POLICY_SHUTDOWN_TIMEOUT", d.ShutdownTimeout),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges. Flags applied after Load are re-checked here.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("POLICY_DB_PATH is required")
	}
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("POLICY_DEFAULT_PAGE_SIZE must be positive, got %d", c.DefaultPageSize)
	}
	if c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("POLICY_MAX_PAGE_SIZE (%d) must be >= POLICY_DEFAULT_PAGE_SIZE (%d)",
			c.MaxPageSize, c.DefaultPageSize)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("POLICY_LOG_LEVEL: %w", err)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("POLICY_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envBool accepts strconv.ParseBool values plus yes/no and on/off.
func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
		return defaultVal
	}
	return b
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
