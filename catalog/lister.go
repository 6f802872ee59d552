package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/metrics"
)

// ListerConfig configures a catalog listing run.
type ListerConfig struct {
	// IndexURL is the catalog index endpoint. Pagination is appended as a
	// page query parameter.
	IndexURL string

	// APIKey is sent as the apikey header on every request.
	APIKey string
}

// Lister enumerates the remote catalog and writes normalized records into
// the catalog store.
type Lister struct {
	cfg     ListerConfig
	store   interfaces.CatalogStore
	fetcher *fetcher
	log     *slog.Logger
}

// NewLister creates a lister using the shared token source and resilient
// client.
func NewLister(cfg ListerConfig, store interfaces.CatalogStore, tokens interfaces.TokenSource, client *httpclient.Client, log *slog.Logger) (*Lister, error) {
	if cfg.IndexURL == "" {
		return nil, fmt.Errorf("catalog index URL is required")
	}
	return &Lister{
		cfg:     cfg,
		store:   store,
		fetcher: &fetcher{tokens: tokens, client: client, apiKey: cfg.APIKey},
		log:     log,
	}, nil
}

// Run fetches every page of the catalog index and upserts one record per
// listed item, returning the number of records written. The operation is
// idempotent: records are keyed by (URL, Name), so re-running against an
// unchanged catalog rewrites identical records.
func (l *Lister) Run(ctx context.Context) (int, error) {
	count := 0

	for page := 1; ; page++ {
		l.log.Debug("Fetching catalog index page", slog.Int("page", page))

		doc, err := l.fetchPage(ctx, page)
		if err != nil {
			return count, fmt.Errorf("fetching catalog page %d: %w", page, err)
		}
		if len(doc.SignificantLink) == 0 {
			break
		}

		for _, item := range doc.SignificantLink {
			key, err := interfaces.NewEntryKey(item.URL, item.Name)
			if err != nil {
				l.log.Warn("Skipping malformed catalog item",
					slog.String("name", item.Name),
					slog.String("url", item.URL),
					"err", err)
				continue
			}

			entry := interfaces.CatalogEntry{URL: key.URL, Name: key.Name}
			if err := l.store.Upsert(ctx, entry); err != nil {
				return count, fmt.Errorf("%w: upserting %s: %v", interfaces.ErrStore, key, err)
			}
			metrics.CatalogUpserts.Inc()
			count++
		}

		if !doc.hasNextPage() {
			break
		}
	}

	l.log.Info("Catalog listing complete", slog.Int("entries", count))
	return count, nil
}

func (l *Lister) fetchPage(ctx context.Context, page int) (indexPage, error) {
	pageURL, err := url.Parse(l.cfg.IndexURL)
	if err != nil {
		return indexPage{}, fmt.Errorf("invalid index URL: %w", err)
	}
	q := pageURL.Query()
	q.Set("page", strconv.Itoa(page))
	pageURL.RawQuery = q.Encode()

	body, err := l.fetcher.get(ctx, pageURL.String())
	if err != nil {
		return indexPage{}, err
	}

	var doc indexPage
	if err := json.Unmarshal(body, &doc); err != nil {
		return indexPage{}, fmt.Errorf("parsing index page: %w", err)
	}
	return doc, nil
}
