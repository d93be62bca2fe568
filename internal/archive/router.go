package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/jonesrussell/goload/internal/logger"
)

// Router classifies decoded entries by extension and writes them out.
//
// Plain entries land under <outputRoot>/<ext>/<basename> with full
// truncate-and-rewrite semantics, so re-running against a populated output
// tree is idempotent. The one recognized database entry is staged in a
// private per-archive directory and reported to the caller exactly once; a
// second occurrence fails the archive.
type Router struct {
	outputRoot string
	dbExt      string
	archive    string
	log        logger.Logger

	stagingDir string
	dbPath     string
}

// NewRouter creates a Router for one archive. dbExt is the recognized
// database extension including the leading dot (e.g. ".accdb").
func NewRouter(outputRoot, dbExt, archiveName string, log logger.Logger) *Router {
	return &Router{
		outputRoot: outputRoot,
		dbExt:      dbExt,
		archive:    archiveName,
		log:        log,
	}
}

// Route writes one entry's payload to its destination. It returns a non-empty
// path exactly when this entry was the archive's database file, fully
// materialized at that path. Entries without an extension are discarded
// without reading the payload; the decoder skips it on the next advance.
func (r *Router) Route(e *Entry, payload io.Reader) (string, error) {
	ext := e.Ext()
	if ext == "" {
		return "", nil
	}

	if ext == r.dbExt {
		return r.stageDatabase(e, payload)
	}

	dir := filepath.Join(r.outputRoot, ext[1:])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	dest := filepath.Join(dir, e.Basename())
	n, err := writeFile(dest, payload)
	if err != nil {
		return "", err
	}

	r.log.Info("wrote entry",
		logger.String("archive", r.archive),
		logger.String("file", dest),
		logger.Int64("bytes", n),
	)

	return "", nil
}

// stageDatabase materializes the database entry in the private staging
// location and enforces the at-most-one invariant.
func (r *Router) stageDatabase(e *Entry, payload io.Reader) (string, error) {
	if r.dbPath != "" {
		return "", &DuplicateDatabaseError{
			Archive: r.archive,
			First:   filepath.Base(r.dbPath),
			Second:  e.Basename(),
		}
	}

	if r.stagingDir == "" {
		dir := filepath.Join(r.outputRoot, ".staging", uuid.NewString())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create staging dir %s: %w", dir, err)
		}
		r.stagingDir = dir
	}

	dest := filepath.Join(r.stagingDir, e.Basename())
	n, err := writeFile(dest, payload)
	if err != nil {
		return "", err
	}

	r.log.Info("staged database entry",
		logger.String("archive", r.archive),
		logger.String("file", e.Basename()),
		logger.Int64("bytes", n),
	)

	r.dbPath = dest
	return dest, nil
}

// DatabasePath returns the staged database file path, or "" if none was seen.
func (r *Router) DatabasePath() string {
	return r.dbPath
}

// Cleanup removes the private staging directory, if one was created.
func (r *Router) Cleanup() error {
	if r.stagingDir == "" {
		return nil
	}
	return os.RemoveAll(r.stagingDir)
}

// writeFile stream-copies payload to dest, truncating any existing file, and
// reports the number of bytes written.
func writeFile(dest string, payload io.Reader) (int64, error) {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", dest, err)
	}

	n, err := io.Copy(f, payload)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("write %s: %w", dest, err)
	}

	if err := f.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", dest, err)
	}

	return n, nil
}
