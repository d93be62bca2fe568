// Package load implements the load command: resolve the catalog, then fetch,
// decode, and convert every archive into the store.
package load

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/goload/internal/archive"
	"github.com/jonesrussell/goload/internal/catalog"
	"github.com/jonesrussell/goload/internal/config"
	"github.com/jonesrussell/goload/internal/convert"
	"github.com/jonesrussell/goload/internal/logger"
	"github.com/jonesrussell/goload/internal/pipeline"
	"github.com/jonesrussell/goload/internal/store"
)

// userAgent identifies goload to the catalog and archive servers.
const userAgent = "goload/1.0"

// catalogTimeout caps the catalog page fetch; unlike archive bodies, the
// catalog page is small.
const catalogTimeout = 30 * time.Second

// Command returns the load command for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Fetch all catalog archives and load them into the store",
		Long: `Resolves the archive catalog, then fetches, decodes, and converts every
archive under the configured concurrency bound. Auxiliary files are written
to <output-root>/<extension>/, extracted schemas to <output-root>/schema/,
and every table of each embedded database is loaded into Postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	flags := cmd.Flags()
	flags.IntP("concurrency", "c", config.DefaultConcurrency, "max archives in flight")
	flags.StringP("out", "o", "", "output root directory")
	flags.Bool("drop-existing", false, "drop existing relations before recreate")
	flags.Bool("optimize", false, "run VACUUM ANALYZE after the load")
	flags.Bool("copy", false, "stream table data through COPY instead of inline INSERTs")

	bind := map[string]string{
		"loader.concurrency":   "concurrency",
		"loader.output_root":   "out",
		"loader.drop_existing": "drop-existing",
		"loader.optimize":      "optimize",
		"loader.use_copy":      "copy",
	}
	for key, flag := range bind {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("bind %s flag: %v", flag, err))
		}
	}

	return cmd
}

// run wires the components and executes the full pipeline.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Must(logger.Config{
		Level:       cfg.Logger.Level,
		Development: cfg.Logger.Development,
	})
	defer log.Sync() //nolint:errcheck

	// Preflight the extraction tools before any network activity: a missing
	// tool invalidates the entire run and is cheap to detect.
	toolchain, err := convert.ResolveToolchain()
	if err != nil {
		return err
	}

	db, err := store.NewPostgresConnection(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, statErr := os.Stat(cfg.Loader.OutputRoot); statErr == nil {
		log.Warn("output root already exists, files will be overwritten",
			logger.String("path", cfg.Loader.OutputRoot))
	}
	if err := os.MkdirAll(cfg.Loader.OutputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := catalog.NewResolver(
		&http.Client{Timeout: catalogTimeout},
		log,
		cfg.Loader.CatalogURL,
		cfg.Loader.LinkSelector,
	)

	urls, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	gateway := store.NewGateway(db, log)
	converter := convert.NewConverter(
		toolchain,
		gateway,
		log,
		cfg.Loader.OutputRoot,
		cfg.Loader.DropExisting,
		cfg.Loader.UseCopy,
	)
	fetcher := archive.NewFetcher(cfg.Loader.HeaderTimeout, userAgent)

	pl := pipeline.New(fetcher, converter, log, pipeline.Config{
		OutputRoot:  cfg.Loader.OutputRoot,
		DatabaseExt: cfg.Loader.DatabaseExt,
		Concurrency: cfg.Loader.Concurrency,
	})

	if err := pl.Run(ctx, urls); err != nil {
		return err
	}

	if cfg.Loader.Optimize {
		if err := gateway.Optimize(ctx); err != nil {
			return err
		}
	}

	log.Info("load complete", logger.Int("archives", len(urls)))
	return nil
}
