package convert_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonesrussell/goload/internal/convert"
)

// installTool writes an executable shell script named name into dir.
func installTool(t *testing.T, dir, name, script string) {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("install fake %s: %v", name, err)
	}
}

// installToolchain puts all three fake tools on a fresh PATH.
func installToolchain(t *testing.T, schema, tables, export string) {
	t.Helper()

	dir := t.TempDir()
	installTool(t, dir, "mdb-schema", schema)
	installTool(t, dir, "mdb-tables", tables)
	installTool(t, dir, "mdb-export", export)
	t.Setenv("PATH", dir)
}

func TestResolveToolchain_MissingTool(t *testing.T) {
	dir := t.TempDir()
	installTool(t, dir, "mdb-schema", "exit 0")
	installTool(t, dir, "mdb-tables", "exit 0")
	// mdb-export deliberately absent.
	t.Setenv("PATH", dir)

	_, err := convert.ResolveToolchain()
	if err == nil {
		t.Fatal("ResolveToolchain() succeeded with mdb-export missing")
	}

	var notFound *convert.ToolNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %T, want *convert.ToolNotFoundError", err)
	}
	if notFound.Tool != "mdb-export" {
		t.Errorf("ToolNotFoundError.Tool = %q, want %q", notFound.Tool, "mdb-export")
	}
}

func TestToolchain_ExtractSchemaDropFlag(t *testing.T) {
	// The fake tool echoes its arguments so the test can assert flag
	// construction without mdbtools installed.
	installToolchain(t, `echo "$@"`, "exit 0", "exit 0")

	tc, err := convert.ResolveToolchain()
	if err != nil {
		t.Fatalf("ResolveToolchain() error = %v", err)
	}

	ctx := context.Background()

	out, err := tc.ExtractSchema(ctx, "data.accdb", true)
	if err != nil {
		t.Fatalf("ExtractSchema(drop=true) error = %v", err)
	}
	if got, want := string(out), "--drop-table --no-relations data.accdb postgres\n"; got != want {
		t.Errorf("drop=true args = %q, want %q", got, want)
	}

	out, err = tc.ExtractSchema(ctx, "data.accdb", false)
	if err != nil {
		t.Fatalf("ExtractSchema(drop=false) error = %v", err)
	}
	if got, want := string(out), "--no-relations data.accdb postgres\n"; got != want {
		t.Errorf("drop=false args = %q, want %q", got, want)
	}
}

func TestToolchain_ListTablesParsing(t *testing.T) {
	installToolchain(t, "exit 0", `printf 'students\n\ncourses\n  \nenrollment\n'`, "exit 0")

	tc, err := convert.ResolveToolchain()
	if err != nil {
		t.Fatalf("ResolveToolchain() error = %v", err)
	}

	tables, err := tc.ListTables(context.Background(), "data.accdb")
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}

	want := []string{"students", "courses", "enrollment"}
	if len(tables) != len(want) {
		t.Fatalf("ListTables() = %v, want %v", tables, want)
	}
	for i := range want {
		if tables[i] != want[i] {
			t.Errorf("tables[%d] = %q, want %q", i, tables[i], want[i])
		}
	}
}

func TestToolchain_InvalidOutputEncoding(t *testing.T) {
	// A tool that exits cleanly but emits bytes that are not valid UTF-8
	// must fail the extraction step rather than hand garbage downstream.
	installToolchain(t, `printf '\377\376'`, `printf '\377\376'`, "exit 0")

	tc, err := convert.ResolveToolchain()
	if err != nil {
		t.Fatalf("ResolveToolchain() error = %v", err)
	}

	ctx := context.Background()

	if _, err := tc.ExtractSchema(ctx, "data.accdb", false); !errors.Is(err, convert.ErrInvalidToolOutput) {
		t.Errorf("ExtractSchema() error = %v, want ErrInvalidToolOutput", err)
	}

	if _, err := tc.ListTables(ctx, "data.accdb"); !errors.Is(err, convert.ErrInvalidToolOutput) {
		t.Errorf("ListTables() error = %v, want ErrInvalidToolOutput", err)
	}
}

func TestToolchain_NonZeroExit(t *testing.T) {
	installToolchain(t, "exit 0", `echo 'Unable to open file' >&2; exit 1`, "exit 0")

	tc, err := convert.ResolveToolchain()
	if err != nil {
		t.Fatalf("ResolveToolchain() error = %v", err)
	}

	_, err = tc.ListTables(context.Background(), "data.accdb")
	if err == nil {
		t.Fatal("ListTables() succeeded despite tool failure")
	}

	var exitErr *convert.ToolExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("error = %T, want *convert.ToolExitError", err)
	}
	if exitErr.Stderr != "Unable to open file" {
		t.Errorf("ToolExitError.Stderr = %q", exitErr.Stderr)
	}
}

func TestToolchain_ExportTableCSVStreams(t *testing.T) {
	installToolchain(t, "exit 0", "exit 0", `printf 'id,name\n1,Ada\n2,Grace\n'`)

	tc, err := convert.ResolveToolchain()
	if err != nil {
		t.Fatalf("ResolveToolchain() error = %v", err)
	}

	rc, wait, err := tc.ExportTableCSV(context.Background(), "data.accdb", "students")
	if err != nil {
		t.Fatalf("ExportTableCSV() error = %v", err)
	}

	data := make([]byte, 0, 64)
	buf := make([]byte, 16)
	for {
		n, readErr := rc.Read(buf)
		data = append(data, buf[:n]...)
		if readErr != nil {
			break
		}
	}

	if err := wait(); err != nil {
		t.Fatalf("wait() error = %v", err)
	}
	if string(data) != "id,name\n1,Ada\n2,Grace\n" {
		t.Errorf("stream = %q", data)
	}
}
