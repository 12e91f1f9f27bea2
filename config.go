package feedcache

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hyperengineering/feedcache/internal/store"
)

// Config configures the feedcache client.
type Config struct {
	// LocalPath is the path to the local SQLite database.
	// Defaults to ~/.feedcache/cache.db.
	LocalPath string `env:"FEEDCACHE_DB_PATH"`

	// Label is the default partition operated on when a call names none.
	// If empty, resolved using label resolution (explicit > FEEDCACHE_LABEL env > "default").
	Label string `env:"FEEDCACHE_LABEL"`

	// SourceURL is the base URL of the remote feed API.
	// If empty, operates in offline-only mode.
	SourceURL string `env:"FEEDCACHE_SOURCE_URL"`

	// APIKey authenticates with the feed API.
	APIKey string `env:"FEEDCACHE_API_KEY"`

	// PageSize is the default page size for feeds that do not set one.
	PageSize int `env:"FEEDCACHE_PAGE_SIZE"`

	// RequestTimeout bounds each feed API request.
	// Defaults to 30 seconds.
	RequestTimeout time.Duration `env:"FEEDCACHE_REQUEST_TIMEOUT"`

	// RefreshInterval is how often the default label is refreshed in the
	// background. Defaults to 5 minutes.
	RefreshInterval time.Duration `env:"FEEDCACHE_REFRESH_INTERVAL"`

	// AutoRefresh enables background refreshing of the default label.
	AutoRefresh bool `env:"FEEDCACHE_AUTO_REFRESH"`

	// Debug enables verbose logging of feed API traffic and load cycles.
	Debug bool `env:"FEEDCACHE_DEBUG"`

	// DebugLogPath is the path to write debug logs.
	// Defaults to stderr if empty.
	DebugLogPath string `env:"FEEDCACHE_DEBUG_LOG"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LocalPath:       store.DefaultDBPath(),
		Label:           store.DefaultLabel,
		PageSize:        DefaultPageSize,
		RequestTimeout:  30 * time.Second,
		RefreshInterval: 5 * time.Minute,
	}
}

// ConfigFromEnv reads configuration from FEEDCACHE_* environment variables.
// Unset variables leave the zero value; apply WithDefaults afterwards.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
// Returns *ValidationError for invalid fields.
func (c *Config) Validate() error {
	if c.LocalPath == "" {
		return &ValidationError{Scope: "config", Field: "LocalPath", Message: "required: path to SQLite database"}
	}

	if c.Label != "" {
		if err := store.ValidateLabel(c.Label); err != nil {
			return &ValidationError{Scope: "config", Field: "Label", Message: err.Error()}
		}
	}

	if c.PageSize < 0 || c.PageSize > MaxPageSize {
		return &ValidationError{Scope: "config", Field: "PageSize", Message: ErrInvalidPageSize.Error()}
	}

	if c.RequestTimeout < 0 {
		return &ValidationError{Scope: "config", Field: "RequestTimeout", Message: "must be non-negative"}
	}

	if c.RefreshInterval < 0 {
		return &ValidationError{Scope: "config", Field: "RefreshInterval", Message: "must be non-negative"}
	}

	return nil
}

// IsOffline returns true if the client operates in offline-only mode.
// Offline mode is determined by SourceURL being empty.
func (c *Config) IsOffline() bool {
	return c.SourceURL == ""
}

// WithDefaults fills in default values for unset fields.
// Label resolution: explicit Label field > FEEDCACHE_LABEL env > "default".
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()

	if c.Label == "" {
		resolved, err := store.ResolveLabel("")
		if err == nil {
			c.Label = resolved
		} else {
			c.Label = defaults.Label
		}
	}

	if c.LocalPath == "" {
		c.LocalPath = defaults.LocalPath
	}
	if c.PageSize == 0 {
		c.PageSize = defaults.PageSize
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = defaults.RefreshInterval
	}

	return c
}
