package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/medarchive/content-pipeline/httpclient"
	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/medarchive/content-pipeline/metrics"
)

// EnricherConfig configures one enrichment deployment. A deployment fetches
// exactly one additional field; archiving several fields means several
// deployments, each driven to completion separately.
type EnricherConfig struct {
	// Field is the detail-document field to fetch and store.
	Field string

	// APIKey is sent as the apikey header on every request.
	APIKey string

	// BatchSize caps how many entries one invocation processes. Defaults
	// to 25.
	BatchSize int

	// RunBudget bounds one invocation's wall-clock time. When it elapses the
	// invocation returns MoreItems=true instead of finishing the batch.
	// Defaults to 60 seconds.
	RunBudget time.Duration
}

// Enricher performs one bounded unit of the fill-missing-field loop.
type Enricher struct {
	cfg     EnricherConfig
	store   interfaces.CatalogStore
	fetcher *fetcher
	log     *slog.Logger
}

// NewEnricher creates an enricher using the shared token source and
// resilient client.
func NewEnricher(cfg EnricherConfig, store interfaces.CatalogStore, tokens interfaces.TokenSource, client *httpclient.Client, log *slog.Logger) (*Enricher, error) {
	if cfg.Field == "" {
		return nil, fmt.Errorf("enrichment field is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	if cfg.RunBudget <= 0 {
		cfg.RunBudget = 60 * time.Second
	}
	return &Enricher{
		cfg:     cfg,
		store:   store,
		fetcher: &fetcher{tokens: tokens, client: client, apiKey: cfg.APIKey},
		log:     log,
	}, nil
}

// RunOnce scans the store for entries lacking the configured field, fetches
// the field for up to BatchSize of them, and updates each record in place.
//
// An entry whose fetch exhausts retries is skipped, not fatal: the scan
// filter selects it again on a later invocation. MoreItems in the result is
// true whenever the invocation stopped before the scan confirmed the end of
// the table, which is what tells the external driver to invoke again.
func (e *Enricher) RunOnce(ctx context.Context) (interfaces.StepResult, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.cfg.RunBudget)
	defer cancel()

	var result interfaces.StepResult

	batch, nextToken, err := e.collectBatch(runCtx)
	if err != nil {
		return result, err
	}
	result.MoreItems = nextToken != ""

	e.log.Debug("Assembled enrichment batch",
		slog.Int("size", len(batch)),
		slog.Bool("table_exhausted", nextToken == ""))

	for _, entry := range batch {
		if runCtx.Err() != nil {
			// Budget elapsed mid-batch. The remaining entries still lack the
			// field, so the next invocation's scan re-selects them.
			result.MoreItems = true
			e.log.Warn("Run budget elapsed, abandoning remainder of batch",
				slog.Int("processed", result.Scanned),
				slog.Int("batch", len(batch)))
			break
		}

		result.Scanned++
		key := entry.Key()

		value, err := e.fetchField(runCtx, entry.URL)
		switch {
		case err == nil:
			if err := e.store.SetField(runCtx, key, e.cfg.Field, value); err != nil {
				return result, fmt.Errorf("%w: updating %s: %v", interfaces.ErrStore, key, err)
			}
			metrics.EntriesEnriched.Inc()
			result.Enriched++

		case errors.Is(err, interfaces.ErrAuthRejected):
			// Nothing else in the batch can succeed without credentials.
			return result, err

		case errors.Is(err, interfaces.ErrStore):
			return result, err

		default:
			// Retries exhausted, field missing upstream, or an unparseable
			// document. Leave the entry for a later invocation rather than
			// letting one bad item block the rest of the batch.
			metrics.EntriesSkipped.Inc()
			result.Skipped++
			e.log.Warn("Skipping entry",
				slog.String("entry", key.String()),
				"err", err)
		}
	}

	e.log.Info("Enrichment step complete",
		slog.Int("scanned", result.Scanned),
		slog.Int("enriched", result.Enriched),
		slog.Int("skipped", result.Skipped),
		slog.Bool("more_items", result.MoreItems))

	return result, nil
}

// collectBatch accumulates entries missing the field until the batch is full
// or the store reports end-of-data, carrying the store's continuation token
// forward strictly within this invocation.
func (e *Enricher) collectBatch(ctx context.Context) ([]interfaces.CatalogEntry, string, error) {
	var batch []interfaces.CatalogEntry
	token := ""

	for len(batch) < e.cfg.BatchSize {
		page, err := e.store.ScanMissingField(ctx, e.cfg.Field, token, e.cfg.BatchSize-len(batch))
		if err != nil {
			return nil, "", fmt.Errorf("%w: scanning for missing %q: %v", interfaces.ErrStore, e.cfg.Field, err)
		}
		batch = append(batch, page.Entries...)
		token = page.NextToken
		if token == "" {
			break
		}
	}

	return batch, token, nil
}

// fetchField retrieves the entry's detail document and extracts the
// configured field. String values are stored as-is; anything structured is
// stored as its JSON encoding.
func (e *Enricher) fetchField(ctx context.Context, detailURL string) (string, error) {
	body, err := e.fetcher.get(ctx, detailURL)
	if err != nil {
		return "", err
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("parsing detail document: %w", err)
	}

	raw, ok := doc[e.cfg.Field]
	if !ok {
		return "", fmt.Errorf("%w: %q", interfaces.ErrFieldMissing, e.cfg.Field)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	return string(raw), nil
}
