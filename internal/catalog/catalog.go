// Package catalog resolves the list of archive URLs from the remote catalog
// page.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/goload/internal/logger"
)

// Resolver fetches the catalog page and extracts archive download links.
type Resolver struct {
	client   *http.Client
	log      logger.Logger
	pageURL  string
	selector string
}

// NewResolver creates a Resolver for the given catalog page. selector picks
// the archive anchors out of the page, e.g. `table a[href$='.zip']`.
func NewResolver(client *http.Client, log logger.Logger, pageURL, selector string) *Resolver {
	return &Resolver{
		client:   client,
		log:      log,
		pageURL:  pageURL,
		selector: selector,
	}
}

// Resolve fetches the catalog page and returns the absolute archive URLs in
// document order. An empty result is valid: it simply means an empty run.
func (r *Resolver) Resolve(ctx context.Context) ([]string, error) {
	base, err := url.Parse(r.pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.pageURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create catalog request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch catalog page: unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse catalog page: %w", err)
	}

	var urls []string
	doc.Find(r.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		ref, refErr := url.Parse(href)
		if refErr != nil {
			r.log.Warn("skipping unparseable catalog link", logger.String("href", href))
			return
		}

		urls = append(urls, base.ResolveReference(ref).String())
	})

	r.log.Info("catalog resolved",
		logger.String("page", r.pageURL),
		logger.Int("archives", len(urls)),
	)

	return urls, nil
}
