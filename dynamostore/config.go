package dynamostore

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// maxTransactItems is the DynamoDB limit on actions per TransactWriteItems call.
const maxTransactItems = 100

// Config holds configuration for the DynamoDB backend.
type Config struct {
	// TablePrefix is prepended to every registered table name.
	// Default: ""
	TablePrefix string `env:"TABLE_PREFIX"`

	// MaxTransactItems caps the actions in one commit.
	// Default: 100 (DynamoDB's limit)
	MaxTransactItems int `env:"MAX_TRANSACT_ITEMS" envDefault:"100"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		MaxTransactItems: maxTransactItems,
	}
}

// LoadConfig reads Config from environment variables with the given prefix
// (e.g., "ARBOR_DYNAMO_" reads ARBOR_DYNAMO_TABLE_PREFIX).
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
	if c.MaxTransactItems < 1 || c.MaxTransactItems > maxTransactItems {
		c.MaxTransactItems = maxTransactItems
	}
}
