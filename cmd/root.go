// Package cmd implements the command-line interface for goload.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/goload/cmd/load"
	"github.com/jonesrussell/goload/cmd/tools"
	"github.com/jonesrussell/goload/internal/config"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug logging for all commands.
	debug bool

	// rootCmd represents the root command for the goload CLI.
	rootCmd = &cobra.Command{
		Use:   "goload",
		Short: "Download Access database archives and load them into Postgres",
		Long: `goload downloads a catalog of zip archives, partitions their auxiliary
files by extension, and converts each embedded Access database into a fully
loaded Postgres store.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to viper.
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("goload version %s\n", "1.0.0")
		},
	})

	rootCmd.AddCommand(load.Command())
	rootCmd.AddCommand(tools.Command())
}

// initConfig reads in the config file and environment variables.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GOLOAD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	// The config file is optional; defaults and environment variables cover
	// every key.
	if err := viper.ReadInConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config file not found: %v (using defaults and environment variables)\n", err)
	}

	if err := bindEnvVars(); err != nil {
		return err
	}

	if debug {
		viper.Set("logger.level", "debug")
		viper.Set("logger.development", true)
	}

	return nil
}

// bindEnvVars maps the common unprefixed environment variables to config keys.
func bindEnvVars() error {
	binds := map[string][]string{
		"logger.level":       {"LOG_LEVEL"},
		"postgres.host":      {"POSTGRES_HOST", "PGHOST"},
		"postgres.port":      {"POSTGRES_PORT", "PGPORT"},
		"postgres.user":      {"POSTGRES_USER", "PGUSER"},
		"postgres.password":  {"POSTGRES_PASSWORD", "PGPASSWORD"},
		"postgres.dbname":    {"POSTGRES_DB", "PGDATABASE"},
		"loader.catalog_url": {"GOLOAD_CATALOG_URL"},
		"loader.output_root": {"GOLOAD_OUTPUT_ROOT"},
	}

	for key, envs := range binds {
		args := append([]string{key}, envs...)
		if err := viper.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	return nil
}

// setDefaults sets production-safe default configuration values.
func setDefaults() {
	viper.SetDefault("logger", map[string]any{
		"level":       "info",
		"development": false,
	})

	viper.SetDefault("postgres", map[string]any{
		"host":              "127.0.0.1",
		"port":              "5432",
		"user":              "postgres",
		"password":          "",
		"dbname":            "goload",
		"sslmode":           "disable",
		"max_open_conns":    config.DefaultMaxOpenConns,
		"max_idle_conns":    config.DefaultMaxIdleConns,
		"conn_max_lifetime": config.DefaultConnMaxLifetime.String(),
	})

	viper.SetDefault("loader", map[string]any{
		"catalog_url":    "https://nces.ed.gov/ipeds/use-the-data/download-access-database",
		"link_selector":  config.DefaultLinkSelector,
		"output_root":    "out/raw",
		"concurrency":    config.DefaultConcurrency,
		"drop_existing":  false,
		"optimize":       false,
		"use_copy":       false,
		"database_ext":   config.DefaultDatabaseExt,
		"header_timeout": config.DefaultHeaderTimeout.String(),
	})
}
