package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/goload/internal/logger"
)

// TableLoad is the data payload for one table of a conversion. Exactly one of
// SQL or Stream is set: SQL carries an inline statement block, Stream opens a
// CSV byte stream (header row first) consumed through COPY without
// materializing the table in memory.
type TableLoad struct {
	Table string
	SQL   string
	// Stream opens the CSV source and returns the reader plus a wait
	// function that reaps the producing process after the reader is
	// exhausted.
	Stream func(ctx context.Context) (io.ReadCloser, func() error, error)
}

// Gateway executes conversion transactions against the relational store.
// Connections are acquired from the pool per conversion and released when
// the transaction ends, never held across archives.
type Gateway struct {
	db  *sqlx.DB
	log logger.Logger
}

// NewGateway creates a Gateway over the shared pool.
func NewGateway(db *sqlx.DB, log logger.Logger) *Gateway {
	return &Gateway{db: db, log: log}
}

// ApplyConversion applies one conversion as a single transaction: the schema
// statement block first, then each table load in the given order. The whole
// sequence commits atomically or not at all, so a failed table load rolls
// back that archive's schema as well.
func (g *Gateway) ApplyConversion(ctx context.Context, schema []byte, loads []TableLoad) error {
	tx, err := g.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin conversion transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	for _, load := range loads {
		if err := g.applyLoad(ctx, tx, load); err != nil {
			return fmt.Errorf("load table %s: %w", load.Table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit conversion: %w", err)
	}

	return nil
}

// applyLoad applies one table's payload inside the transaction.
func (g *Gateway) applyLoad(ctx context.Context, tx *sqlx.Tx, load TableLoad) error {
	if load.Stream != nil {
		return g.copyTable(ctx, tx, load)
	}

	// Empty payload means the table has no rows; nothing to execute.
	if strings.TrimSpace(load.SQL) == "" {
		return nil
	}

	if _, err := tx.ExecContext(ctx, load.SQL); err != nil {
		return err
	}

	return nil
}

// copyTable streams CSV rows into the table via COPY. The CSV header row
// supplies the column list. The export process is always reaped, even when
// the COPY fails mid-stream.
func (g *Gateway) copyTable(ctx context.Context, tx *sqlx.Tx, load TableLoad) error {
	rc, wait, err := load.Stream(ctx)
	if err != nil {
		return fmt.Errorf("open export stream: %w", err)
	}

	copyErr := g.copyStream(ctx, tx, load.Table, rc)

	// Closing the pipe unblocks a still-writing exporter before the reap.
	rc.Close()
	waitErr := wait()

	if copyErr != nil {
		return copyErr
	}
	if waitErr != nil {
		return fmt.Errorf("export stream: %w", waitErr)
	}

	return nil
}

// copyStream performs the COPY itself.
func (g *Gateway) copyStream(ctx context.Context, tx *sqlx.Tx, table string, rc io.Reader) error {
	cr := csv.NewReader(rc)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		// No header means no rows were exported.
		return nil
	}
	if err != nil {
		return fmt.Errorf("read export header: %w", err)
	}

	columns := make([]string, len(header))
	copy(columns, header)

	stmt, err := tx.PreparexContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("prepare copy: %w", err)
	}

	if err := copyRows(ctx, stmt, cr, len(columns)); err != nil {
		stmt.Close()
		return err
	}

	// The final empty Exec flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("flush copy: %w", err)
	}

	if err := stmt.Close(); err != nil {
		return fmt.Errorf("close copy: %w", err)
	}

	return nil
}

// copyRows feeds CSV records to the prepared COPY statement. Empty fields
// become NULLs; the export tool leaves NULL values empty.
func copyRows(ctx context.Context, stmt *sqlx.Stmt, cr *csv.Reader, width int) error {
	args := make([]any, width)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read export row: %w", err)
		}

		for i, field := range record {
			if field == "" {
				args[i] = nil
			} else {
				args[i] = field
			}
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("copy row: %w", err)
		}
	}
}

// Optimize runs VACUUM ANALYZE on the store. It must run outside any
// transaction.
func (g *Gateway) Optimize(ctx context.Context) error {
	g.log.Info("optimizing store")

	if _, err := g.db.ExecContext(ctx, "VACUUM ANALYZE"); err != nil {
		return fmt.Errorf("vacuum analyze: %w", err)
	}

	return nil
}
