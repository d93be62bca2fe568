// Package convert turns one staged Access database file into schema and
// table data loaded into the relational store, orchestrating the external
// mdbtools extraction programs.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// External extraction tool names, located via the process search path.
const (
	schemaTool = "mdb-schema"
	tablesTool = "mdb-tables"
	exportTool = "mdb-export"
)

// exportDateFormat matches the timestamp layout Postgres accepts by default.
const exportDateFormat = "%Y-%m-%d %H:%M:%S"

// Toolchain runs the three resolved extraction tools. Only their resolved
// paths, exit status, and stdout byte stream are part of the contract;
// stderr is carried for diagnostics.
type Toolchain struct {
	schemaPath string
	tablesPath string
	exportPath string
}

// ResolveToolchain locates all three tools on the search path. A missing
// tool returns *ToolNotFoundError; callers must run this before any network
// activity.
func ResolveToolchain() (*Toolchain, error) {
	tc := &Toolchain{}

	for _, t := range []struct {
		name string
		dest *string
	}{
		{schemaTool, &tc.schemaPath},
		{tablesTool, &tc.tablesPath},
		{exportTool, &tc.exportPath},
	} {
		path, err := exec.LookPath(t.name)
		if err != nil {
			return nil, &ToolNotFoundError{Tool: t.name, Err: err}
		}
		*t.dest = path
	}

	return tc, nil
}

// ResolvedTool pairs a tool name with its location on the search path.
type ResolvedTool struct {
	Name string
	Path string
}

// Resolved reports where each extraction tool resolved.
func (tc *Toolchain) Resolved() []ResolvedTool {
	return []ResolvedTool{
		{Name: schemaTool, Path: tc.schemaPath},
		{Name: tablesTool, Path: tc.tablesPath},
		{Name: exportTool, Path: tc.exportPath},
	}
}

// ExtractSchema captures the schema statement block for the database file.
// drop controls whether destructive relation drops precede each create.
func (tc *Toolchain) ExtractSchema(ctx context.Context, file string, drop bool) ([]byte, error) {
	args := []string{}
	if drop {
		args = append(args, "--drop-table")
	}
	args = append(args, "--no-relations", file, "postgres")

	out, err := runTool(ctx, schemaTool, tc.schemaPath, args)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%s: %w", schemaTool, ErrInvalidToolOutput)
	}

	return out, nil
}

// ListTables enumerates the database file's tables, one name per output
// line, ignoring blank lines. The enumeration order is not guaranteed by
// the tool and must be treated as nondeterministic.
func (tc *Toolchain) ListTables(ctx context.Context, file string) ([]string, error) {
	out, err := runTool(ctx, tablesTool, tc.tablesPath, []string{"-1", file})
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%s: %w", tablesTool, ErrInvalidToolOutput)
	}

	var tables []string
	for _, line := range strings.Split(string(out), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			tables = append(tables, name)
		}
	}

	return tables, nil
}

// ExportTable captures one table's data as an inline INSERT statement block.
func (tc *Toolchain) ExportTable(ctx context.Context, file, table string) ([]byte, error) {
	args := []string{"-H", "-D", exportDateFormat, "-I", "postgres", file, table}

	out, err := runTool(ctx, exportTool, tc.exportPath, args)
	if err != nil {
		return nil, err
	}

	if !utf8.Valid(out) {
		return nil, fmt.Errorf("%s %s: %w", exportTool, table, ErrInvalidToolOutput)
	}

	return out, nil
}

// ExportTableCSV streams one table's data as CSV with a header row, so the
// table contents never need to be materialized in process memory. The
// returned wait function reaps the tool after the reader is exhausted and
// surfaces its exit status.
func (tc *Toolchain) ExportTableCSV(ctx context.Context, file, table string) (io.ReadCloser, func() error, error) {
	cmd := exec.CommandContext(ctx, tc.exportPath, "-D", exportDateFormat, file, table)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("%s: stdout pipe: %w", exportTool, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("%s: start: %w", exportTool, err)
	}

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return &ToolExitError{
				Tool:   fmt.Sprintf("%s %s", exportTool, table),
				Stderr: strings.TrimSpace(stderr.String()),
				Err:    err,
			}
		}
		return nil
	}

	return stdout, wait, nil
}

// runTool executes one tool and returns its stdout. Non-zero exit becomes a
// *ToolExitError.
func runTool(ctx context.Context, name, path string, args []string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ToolExitError{
				Tool:   name,
				Stderr: strings.TrimSpace(string(exitErr.Stderr)),
				Err:    err,
			}
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	return out, nil
}
