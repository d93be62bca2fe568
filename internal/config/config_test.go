package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/goload/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Logger: config.LoggerConfig{Level: "info"},
		Postgres: config.PostgresConfig{
			Host:            "127.0.0.1",
			Port:            "5432",
			User:            "postgres",
			DBName:          "goload",
			SSLMode:         "disable",
			MaxOpenConns:    config.DefaultMaxOpenConns,
			MaxIdleConns:    config.DefaultMaxIdleConns,
			ConnMaxLifetime: config.DefaultConnMaxLifetime,
		},
		Loader: config.LoaderConfig{
			CatalogURL:    "https://nces.ed.gov/ipeds/use-the-data/download-access-database",
			LinkSelector:  config.DefaultLinkSelector,
			OutputRoot:    "out/raw",
			Concurrency:   config.DefaultConcurrency,
			DatabaseExt:   config.DefaultDatabaseExt,
			HeaderTimeout: 30 * time.Second,
		},
	}
}

func TestConfig_Valid(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "zero concurrency",
			mutate:  func(c *config.Config) { c.Loader.Concurrency = 0 },
			wantErr: "concurrency must be positive",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *config.Config) { c.Loader.Concurrency = -1 },
			wantErr: "concurrency must be positive",
		},
		{
			name:    "missing output root",
			mutate:  func(c *config.Config) { c.Loader.OutputRoot = "" },
			wantErr: "output_root must be specified",
		},
		{
			name:    "missing dbname",
			mutate:  func(c *config.Config) { c.Postgres.DBName = "" },
			wantErr: "dbname must be specified",
		},
		{
			name:    "missing host",
			mutate:  func(c *config.Config) { c.Postgres.Host = "" },
			wantErr: "host must be specified",
		},
		{
			name:    "zero pool size",
			mutate:  func(c *config.Config) { c.Postgres.MaxOpenConns = 0 },
			wantErr: "max_open_conns must be positive",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *config.Config) { c.Loader.DatabaseExt = "accdb" },
			wantErr: "database_ext must start with a dot",
		},
		{
			name:    "empty extension",
			mutate:  func(c *config.Config) { c.Loader.DatabaseExt = "" },
			wantErr: "database_ext must start with a dot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
