package config

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if FLAMES_CONFIG is set
//  3. env (prefix FLAMES_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("FLAMES_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, loadFailed(err, "read config file")
		}
	}

	// Map env keys like FLAMES_BASE_URL -> base_url (flat keys).
	envProvider := env.Provider("FLAMES_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "flames_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, loadFailed(err, "read environment")
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, loadFailed(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the fields the client cannot work without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return invalid("base_url must not be empty")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	if strings.TrimSpace(c.StateDir) == "" {
		return invalid("state_dir must not be empty")
	}
	if c.RequestTimeoutMS < 0 {
		return invalid("request_timeout_ms must not be negative")
	}
	if c.JoinRetryAttempts < 1 {
		return invalid("join_retry_attempts must be at least 1")
	}
	return nil
}
