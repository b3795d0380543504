package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Config carries everything needed to reach the warehouse's statement
// endpoint. It is built once at process start and passed by reference; there
// is no ambient global state.
type Config struct {
	Host      string `envconfig:"SNOWFLAKE_HOST"`
	Token     string `envconfig:"SNOWFLAKE_TOKEN"`
	TokenType string `envconfig:"SNOWFLAKE_TOKEN_TYPE" default:"PROGRAMMATIC_ACCESS_TOKEN"`
	Database  string `envconfig:"SNOWFLAKE_DATABASE" default:"KNOT"`
	Schema    string `envconfig:"SNOWFLAKE_RAG_SCHEMA" default:"RAG"`
	Warehouse string `envconfig:"SNOWFLAKE_WAREHOUSE"`
	Role      string `envconfig:"SNOWFLAKE_ROLE"`

	QueryLogPath string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root.
	// Ignore errors, as env vars might be set in the shell.
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: SNOWFLAKE_HOST", ErrMissingRequired)
	}
	if c.Token == "" {
		return fmt.Errorf("%w: SNOWFLAKE_TOKEN", ErrMissingRequired)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: SNOWFLAKE_DATABASE", ErrMissingRequired)
	}
	if c.Schema == "" {
		return fmt.Errorf("%w: SNOWFLAKE_RAG_SCHEMA", ErrMissingRequired)
	}
	return nil
}

// Endpoint is the statement execution URL for the configured host.
func (c *Config) Endpoint() string {
	return fmt.Sprintf("https://%s/api/v2/statements", c.Host)
}

// Qualify returns the fully qualified name of a retrieval-schema table.
// Statements carry the full name so they work even when the request scope
// omits the database or schema qualifiers.
func (c *Config) Qualify(table string) string {
	return fmt.Sprintf("%s.%s.%s", c.Database, c.Schema, table)
}
