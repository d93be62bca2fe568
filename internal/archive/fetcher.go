// Package archive implements the streaming fetch-decode-route stage of the
// load pipeline: one HTTP byte stream per archive, a forward-only zip entry
// cursor over it, and extension-partitioned routing of each entry.
package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Fetcher opens streaming HTTP bodies for archive URLs. The body is never
// buffered; callers own closing it.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a Fetcher. headerTimeout caps the wait for response
// headers only; archive bodies may legitimately take minutes to stream.
func NewFetcher(headerTimeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: headerTimeout,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch performs a GET for the archive URL and returns the response body.
// A non-2xx status is returned as *HTTPStatusError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, &HTTPStatusError{
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	return resp.Body, nil
}
