package store

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for repositories.
type Config struct {
	// DefaultPageSize is used when a list call leaves Size at zero.
	// Default: 10
	DefaultPageSize int `env:"DEFAULT_PAGE_SIZE" envDefault:"10"`

	// RejectDetached makes Update and Delete fail with ErrDetached for
	// entities read with NoTracking.
	// Default: true
	RejectDetached bool `env:"REJECT_DETACHED" envDefault:"true"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPageSize: 10,
		RejectDetached:  true,
	}
}

// LoadConfig reads Config from environment variables with the given prefix
// (e.g., "ARBOR_" reads ARBOR_DEFAULT_PAGE_SIZE).
func LoadConfig(prefix string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: prefix}); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.validate()
	return cfg, nil
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.DefaultPageSize < 1 {
		c.DefaultPageSize = 10
	}
}
