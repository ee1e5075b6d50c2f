package sqlstore

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/huandu/go-sqlbuilder"
)

// Config holds configuration for the SQL backend.
type Config struct {
	// Flavor is the SQL dialect: "postgresql", "sqlite" or "mysql".
	// Default: "postgresql"
	Flavor string `env:"FLAVOR" envDefault:"postgresql"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{Flavor: "postgresql"}
}

// LoadConfig reads Config from environment variables with the given prefix
// (e.g., "ARBOR_SQL_" reads ARBOR_SQL_FLAVOR).
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
	if _, ok := flavors[strings.ToLower(c.Flavor)]; !ok {
		c.Flavor = "postgresql"
	}
}

var flavors = map[string]sqlbuilder.Flavor{
	"postgresql": sqlbuilder.PostgreSQL,
	"postgres":   sqlbuilder.PostgreSQL,
	"sqlite":     sqlbuilder.SQLite,
	"mysql":      sqlbuilder.MySQL,
}

func (c Config) flavor() sqlbuilder.Flavor {
	return flavors[strings.ToLower(c.Flavor)]
}
