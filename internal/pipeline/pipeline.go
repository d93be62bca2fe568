// Package pipeline schedules archive loads under a fixed concurrency bound
// and drives each archive through fetch, decode, route, and conversion.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/goload/internal/archive"
	"github.com/jonesrussell/goload/internal/logger"
)

// ArchiveFetcher opens a streaming byte stream for one archive URL.
type ArchiveFetcher interface {
	Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// DatabaseConverter converts one staged database file and loads the result
// into the store.
type DatabaseConverter interface {
	Convert(ctx context.Context, dbPath string) error
}

// Config holds the pipeline run parameters.
type Config struct {
	// OutputRoot is the extension-partitioned output directory.
	OutputRoot string
	// DatabaseExt is the recognized embedded-database extension.
	DatabaseExt string
	// Concurrency bounds in-flight archives.
	Concurrency int
}

// Pipeline runs many archive loads in parallel, at most Concurrency at any
// instant. Within one archive, decoding is strictly sequential; the spawned
// conversion runs concurrently with the remainder of that archive's decode
// and is joined before the archive reports done.
type Pipeline struct {
	fetcher   ArchiveFetcher
	converter DatabaseConverter
	log       logger.Logger
	cfg       Config
}

// New creates a Pipeline.
func New(fetcher ArchiveFetcher, converter DatabaseConverter, log logger.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		fetcher:   fetcher,
		converter: converter,
		log:       log,
		cfg:       cfg,
	}
}

// Run dispatches every archive URL and blocks until all have finished. The
// first error across all archives becomes the run result; in-flight sibling
// archives are not cancelled and run to completion, their results discarded.
func (p *Pipeline) Run(ctx context.Context, urls []string) error {
	p.log.Info("starting pipeline",
		logger.Int("archives", len(urls)),
		logger.Int("concurrency", p.cfg.Concurrency),
	)

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, u := range urls {
		u := u
		g.Go(func() error {
			return p.processArchive(ctx, u)
		})
	}

	return g.Wait()
}

// processArchive performs one archive's full fetch-decode-convert run. It
// occupies one scheduler slot for the sum of its decode and conversion time.
func (p *Pipeline) processArchive(ctx context.Context, rawURL string) error {
	name := archiveName(rawURL)
	log := p.log.With(logger.String("archive", name))
	log.Info("downloading archive", logger.String("url", rawURL))

	body, err := p.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("archive %s: %w", name, err)
	}
	defer body.Close()

	router := archive.NewRouter(p.cfg.OutputRoot, p.cfg.DatabaseExt, name, p.log)
	decoder := archive.NewDecoder(body, name)

	// convDone is the owned handle of the spawned conversion; it is joined
	// exactly once below, never detached, even when decoding failed after
	// the spawn.
	convDone, decodeErr := p.decodeEntries(ctx, decoder, router, log)

	var convErr error
	if convDone != nil {
		convErr = <-convDone
	}

	if cleanupErr := router.Cleanup(); cleanupErr != nil {
		log.Warn("staging cleanup failed", logger.Error(cleanupErr))
	}

	// A decode-side failure wins; a conversion result that arrived after it
	// is discarded.
	if decodeErr != nil {
		return fmt.Errorf("archive %s: %w", name, decodeErr)
	}
	if convErr != nil {
		return fmt.Errorf("archive %s: %w", name, convErr)
	}

	log.Info("archive done")
	return nil
}

// decodeEntries drains the decoder, routing every entry. When the database
// file lands it spawns the conversion immediately so it overlaps with the
// remainder of the decode, and returns the channel carrying its result.
func (p *Pipeline) decodeEntries(
	ctx context.Context,
	decoder *archive.Decoder,
	router *archive.Router,
	log logger.Logger,
) (chan error, error) {
	var convDone chan error

	for {
		entry, err := decoder.Next()
		if err == io.EOF {
			return convDone, nil
		}
		if err != nil {
			return convDone, err
		}

		dbPath, routeErr := router.Route(entry, decoder)
		if routeErr != nil {
			return convDone, routeErr
		}

		if dbPath != "" {
			log.Info("database file staged", logger.String("file", entry.Basename()))

			convDone = make(chan error, 1)
			done := convDone
			go func() {
				done <- p.converter.Convert(ctx, dbPath)
			}()
		}
	}
}

// archiveName derives the archive's short name from its URL.
func archiveName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return path.Base(u.Path)
}
