package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/goload/internal/logger"
	"github.com/jonesrussell/goload/internal/store"
)

// schemaDirName is the output subdirectory receiving schema artifacts.
const schemaDirName = "schema"

// Extractor is the capability boundary over the external extraction tools.
// An in-process parser could replace the subprocesses without changing the
// Converter's contract.
type Extractor interface {
	ExtractSchema(ctx context.Context, file string, drop bool) ([]byte, error)
	ListTables(ctx context.Context, file string) ([]string, error)
	ExportTable(ctx context.Context, file, table string) ([]byte, error)
	ExportTableCSV(ctx context.Context, file, table string) (io.ReadCloser, func() error, error)
}

// Store applies one composed conversion atomically.
type Store interface {
	ApplyConversion(ctx context.Context, schema []byte, loads []store.TableLoad) error
}

// Converter turns one database file into a single ordered transaction:
// schema statements first, then one load per table.
type Converter struct {
	tools        Extractor
	store        Store
	log          logger.Logger
	schemaDir    string
	dropExisting bool
	useCopy      bool
}

// NewConverter creates a Converter writing schema artifacts under
// <outputRoot>/schema.
func NewConverter(
	tools Extractor,
	st Store,
	log logger.Logger,
	outputRoot string,
	dropExisting bool,
	useCopy bool,
) *Converter {
	return &Converter{
		tools:        tools,
		store:        st,
		log:          log,
		schemaDir:    filepath.Join(outputRoot, schemaDirName),
		dropExisting: dropExisting,
		useCopy:      useCopy,
	}
}

// Convert runs the full conversion for one staged database file. The schema
// extraction must fully succeed before any table export is issued, and the
// schema artifact is written out before submission regardless of store
// success, to aid post-hoc debugging.
func (c *Converter) Convert(ctx context.Context, dbPath string) error {
	name := databaseName(dbPath)
	c.log.Info("converting database file",
		logger.String("file", dbPath),
		logger.Bool("drop_existing", c.dropExisting),
	)

	schema, err := c.tools.ExtractSchema(ctx, dbPath, c.dropExisting)
	if err != nil {
		return fmt.Errorf("extract schema for %s: %w", name, err)
	}

	if err := c.writeSchemaArtifact(name, schema); err != nil {
		return err
	}

	tables, err := c.tools.ListTables(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("list tables for %s: %w", name, err)
	}

	var loads []store.TableLoad
	if c.useCopy {
		loads = c.streamLoads(dbPath, tables)
	} else {
		loads, err = c.exportInline(ctx, dbPath, tables)
		if err != nil {
			return fmt.Errorf("export tables for %s: %w", name, err)
		}
	}

	if err := c.store.ApplyConversion(ctx, schema, loads); err != nil {
		return fmt.Errorf("apply conversion for %s: %w", name, err)
	}

	c.log.Info("conversion finished",
		logger.String("database", name),
		logger.Int("tables", len(tables)),
	)

	return nil
}

// exportInline runs one export per table concurrently and collects the
// inline statement payloads in enumeration order. The fan-out here is
// per-archive and short-lived, so it is intentionally not bounded by the
// archive concurrency limit.
func (c *Converter) exportInline(ctx context.Context, dbPath string, tables []string) ([]store.TableLoad, error) {
	loads := make([]store.TableLoad, len(tables))

	var g errgroup.Group
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			data, err := c.tools.ExportTable(ctx, dbPath, table)
			if err != nil {
				return err
			}
			loads[i] = store.TableLoad{Table: table, SQL: string(data)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return loads, nil
}

// streamLoads builds COPY stream specifications, one per table. The streams
// are opened lazily by the gateway inside the conversion transaction.
func (c *Converter) streamLoads(dbPath string, tables []string) []store.TableLoad {
	loads := make([]store.TableLoad, len(tables))

	for i, table := range tables {
		loads[i] = store.TableLoad{
			Table: table,
			Stream: func(ctx context.Context) (io.ReadCloser, func() error, error) {
				return c.tools.ExportTableCSV(ctx, dbPath, table)
			},
		}
	}

	return loads
}

// writeSchemaArtifact persists the extracted schema block to the durable
// schema output subdirectory.
func (c *Converter) writeSchemaArtifact(name string, schema []byte) error {
	if err := os.MkdirAll(c.schemaDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", c.schemaDir, err)
	}

	dest := filepath.Join(c.schemaDir, name+".sql")
	if err := os.WriteFile(dest, schema, 0o644); err != nil {
		return fmt.Errorf("write schema artifact %s: %w", dest, err)
	}

	return nil
}

// databaseName derives the database's short name from its staged file path.
func databaseName(dbPath string) string {
	base := filepath.Base(dbPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
