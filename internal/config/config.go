// Package config defines client configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers defaults, an optional YAML file and FLAMES_* env vars.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// BaseURL is the backend API root, e.g. "http://localhost:8000".
	BaseURL string `koanf:"base_url"`

	// StateDir holds the durable key/value files (session, custom model fields,
	// selected exercise).
	StateDir string `koanf:"state_dir"`

	// RequestTimeoutMS bounds a single API call. Zero disables the timeout.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// SessionSecret, when set, signs the persisted session.
	SessionSecret string `koanf:"session_secret"`

	// JoinRetryAttempts and JoinRetryDelayMS bound the join step of team creation.
	JoinRetryAttempts int `koanf:"join_retry_attempts"`
	JoinRetryDelayMS  int `koanf:"join_retry_delay_ms"`

	// ExportDir is where admin exports are written.
	ExportDir string `koanf:"export_dir"`

	// MetricsAddr exposes the client metrics registry when non-empty.
	MetricsAddr string `koanf:"metrics_addr"`

	// StubAddr is the listen address of the development stub backend.
	StubAddr string `koanf:"stub_addr"`

	// StubJWTSecret signs tokens issued by the stub backend.
	StubJWTSecret string `koanf:"stub_jwt_secret"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		BaseURL:           "http://localhost:8000",
		StateDir:          defaultStateDir(),
		RequestTimeoutMS:  0,
		JoinRetryAttempts: 3,
		JoinRetryDelayMS:  100,
		ExportDir:         ".",
		StubAddr:          ":8000",
		StubJWTSecret:     "flames-dev-secret",
	}
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// JoinRetryDelay returns the initial delay between join attempts.
func (c *Config) JoinRetryDelay() time.Duration {
	return time.Duration(c.JoinRetryDelayMS) * time.Millisecond
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "flames")
	}
	return ".flames"
}
