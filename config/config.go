// Package config loads deployment configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/jacentio/specimen/model"
)

// DefaultMaxBatchCreateSize bounds a single batch-create request.
const DefaultMaxBatchCreateSize = 10000

// Config holds all deployment configuration. It is passed explicitly into
// the engines rather than read from ambient globals.
type Config struct {
	// App
	Addr string
	Env  string

	// Testing disables user auth and seeds created items with the
	// placeholder public user.
	Testing bool

	// IdentifierPrefix is the deployment prefix for refcodes, e.g. "grey"
	// in "grey:BQDWVR". At most 12 characters, refcode grammar.
	IdentifierPrefix string

	// MaxBatchCreateSize is the largest accepted batch-create request.
	MaxBatchCreateSize int

	// AWS / DynamoDB
	AWSRegion        string
	ItemsTable       string
	LinksTable       string
	ConstraintsTable string
	CollectionsTable string
	UsersTable       string
	LinkShards       int
}

// Load reads configuration from environment variables, consulting a local
// .env file if one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Addr:               getEnv("SPECIMEN_ADDR", ":8080"),
		Env:                getEnv("SPECIMEN_ENV", "development"),
		Testing:            getEnvBool("SPECIMEN_TESTING", false),
		IdentifierPrefix:   getEnv("IDENTIFIER_PREFIX", ""),
		MaxBatchCreateSize: getEnvInt("MAX_BATCH_CREATE_SIZE", DefaultMaxBatchCreateSize),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		ItemsTable:         getEnv("SPECIMEN_ITEMS_TABLE", "specimen_items"),
		LinksTable:         getEnv("SPECIMEN_LINKS_TABLE", "specimen_links"),
		ConstraintsTable:   getEnv("SPECIMEN_CONSTRAINTS_TABLE", "specimen_constraints"),
		CollectionsTable:   getEnv("SPECIMEN_COLLECTIONS_TABLE", "specimen_collections"),
		UsersTable:         getEnv("SPECIMEN_USERS_TABLE", "specimen_users"),
		LinkShards:         getEnvInt("SPECIMEN_LINK_SHARDS", 1),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate normalizes and checks the configuration. The identifier prefix
// falls back to "test" in testing mode so local deployments work without
// explicit configuration.
func (c *Config) Validate() error {
	if c.IdentifierPrefix == "" {
		if !c.Testing {
			return fmt.Errorf("IDENTIFIER_PREFIX must be set outside testing mode")
		}
		c.IdentifierPrefix = "test"
	}
	if err := model.ValidatePrefix(c.IdentifierPrefix); err != nil {
		return err
	}
	// A trial refcode must survive the full grammar.
	trial := model.NewRefcode(c.IdentifierPrefix, "AAAAAA")
	if err := trial.Validate(); err != nil {
		return fmt.Errorf("identifier prefix %q does not produce valid refcodes: %w", c.IdentifierPrefix, err)
	}
	if c.MaxBatchCreateSize < 1 {
		c.MaxBatchCreateSize = DefaultMaxBatchCreateSize
	}
	if c.LinkShards < 1 {
		c.LinkShards = 1
	}
	if c.LinkShards > 256 {
		c.LinkShards = 256
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
