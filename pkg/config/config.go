// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9090"`

	// Sources lists marketplaces in display order.
	Sources  []string `envconfig:"SOURCES" default:"amazon,flipkart,croma,reliance"`
	Query    string   `envconfig:"PRODUCT_QUERY" default:"IFB 9 kg washing machine"`
	Keywords []string `envconfig:"PRODUCT_KEYWORDS" default:"ifb,9kg"`

	SourceTimeout     time.Duration `envconfig:"SOURCE_TIMEOUT" default:"20s"`
	RunTimeout        time.Duration `envconfig:"RUN_TIMEOUT" default:"30s"`
	RequestsPerMinute int           `envconfig:"REQUESTS_PER_MINUTE" default:"6"`
	UserAgent         string        `envconfig:"USER_AGENT"`

	CacheDBPath     string        `envconfig:"CACHE_DB_PATH" default:"./cache.db"`
	CacheTTL        time.Duration `envconfig:"CACHE_TTL" default:"0s"`
	RefreshInterval time.Duration `envconfig:"REFRESH_INTERVAL" default:"0s"`
	HistoryLimit    int           `envconfig:"HISTORY_LIMIT" default:"20"`

	DocsDir  string `envconfig:"DOCS_DIR" default:"./docs"`
	DebugDir string `envconfig:"DEBUG_DIR"`
}

type Option func(*Config) error

// WithEnvFile loads variables from path before the environment is read.
// A missing file is not an error.
func WithEnvFile(path string) Option {
	return func(*Config) error {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
}

// WithSources overrides the configured marketplaces.
func WithSources(sources ...string) Option {
	return func(c *Config) error {
		c.Sources = sources
		return nil
	}
}

// Load reads the environment, applies opts and validates the result.
// Env file options run first so the file can feed the environment.
func Load(opts ...Option) (*Config, error) {
	var cfg Config

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Re-apply so explicit options win over the environment.
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			log.Printf("Warning: option application failed: %v", err)
		}
	}

	cfg.Sources = clean(cfg.Sources)
	cfg.Keywords = clean(cfg.Keywords)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if strings.TrimSpace(c.Query) == "" {
		return errors.New("PRODUCT_QUERY is required")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive, got %s", c.SourceTimeout)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("RUN_TIMEOUT must be positive, got %s", c.RunTimeout)
	}
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("REQUESTS_PER_MINUTE must not be negative, got %d", c.RequestsPerMinute)
	}
	if c.CacheTTL < 0 || c.RefreshInterval < 0 {
		return errors.New("CACHE_TTL and REFRESH_INTERVAL must not be negative")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive, got %d", c.HistoryLimit)
	}
	return nil
}

func clean(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
