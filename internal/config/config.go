// Package config provides typed configuration for goload, backed by viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

// Default values applied when neither config file nor environment provide one.
const (
	DefaultConcurrency     = 32
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 5 * time.Minute
	DefaultHeaderTimeout   = 30 * time.Second
	DefaultDatabaseExt     = ".accdb"
	DefaultLinkSelector    = "table a[href$='.zip']"
)

// Config is the process-wide immutable configuration, computed once at
// startup and passed into every component.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Loader   LoaderConfig   `mapstructure:"loader"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `mapstructure:"level"`
	// Development disables log sampling.
	Development bool `mapstructure:"development"`
}

// PostgresConfig holds relational store connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	// MaxOpenConns sizes the connection pool independently of the
	// archive concurrency bound.
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoaderConfig holds pipeline run parameters.
type LoaderConfig struct {
	// CatalogURL is the page listing the archive download links.
	CatalogURL string `mapstructure:"catalog_url"`
	// LinkSelector selects archive anchors on the catalog page.
	LinkSelector string `mapstructure:"link_selector"`
	// OutputRoot is the directory receiving extension-partitioned output.
	OutputRoot string `mapstructure:"output_root"`
	// Concurrency bounds how many archives are in flight at once. It
	// simultaneously bounds outbound HTTP connections, decode memory,
	// and database pool pressure, so it must stay tunable.
	Concurrency int `mapstructure:"concurrency"`
	// DropExisting emits destructive drops before each relation.
	DropExisting bool `mapstructure:"drop_existing"`
	// Optimize runs VACUUM ANALYZE after a successful load.
	Optimize bool `mapstructure:"optimize"`
	// UseCopy streams table data through COPY instead of inline INSERTs.
	UseCopy bool `mapstructure:"use_copy"`
	// DatabaseExt is the recognized embedded-database extension.
	DatabaseExt string `mapstructure:"database_ext"`
	// HeaderTimeout caps the wait for response headers; bodies stream
	// without a deadline.
	HeaderTimeout time.Duration `mapstructure:"header_timeout"`
}

// Load reads the configuration from viper into typed structs and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks all sections.
func (c *Config) Validate() error {
	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	if err := c.Loader.Validate(); err != nil {
		return fmt.Errorf("loader config: %w", err)
	}
	return nil
}

// Validate checks the store connection settings.
func (c *PostgresConfig) Validate() error {
	if c.Host == "" {
		return errors.New("host must be specified")
	}
	if c.DBName == "" {
		return errors.New("dbname must be specified")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max_open_conns must be positive, got %d", c.MaxOpenConns)
	}
	return nil
}

// Validate checks the pipeline run parameters.
func (c *LoaderConfig) Validate() error {
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	if c.OutputRoot == "" {
		return errors.New("output_root must be specified")
	}
	if c.CatalogURL != "" {
		if _, err := url.Parse(c.CatalogURL); err != nil {
			return fmt.Errorf("invalid catalog_url: %w", err)
		}
	}
	if c.DatabaseExt == "" || c.DatabaseExt[0] != '.' {
		return fmt.Errorf("database_ext must start with a dot, got %q", c.DatabaseExt)
	}
	return nil
}
