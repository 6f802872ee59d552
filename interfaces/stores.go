package interfaces

import "context"

// SecretStore persists sensitive material (the signing key) by name.
// Names are deterministic functions of the configured base identifier.
type SecretStore interface {
	PutSecret(ctx context.Context, name, value string) error
	GetSecret(ctx context.Context, name string) (string, error)
}

// ParameterStore persists public, non-sensitive material (the public key PEM
// and the JWKS document) by name.
type ParameterStore interface {
	PutParameter(ctx context.Context, name, value string) error
	GetParameter(ctx context.Context, name string) (string, error)
}

// CatalogStore is the persistent keyed item store the pipeline archives into.
//
// All writes are idempotent: Upsert creates the record for its composite key
// if absent and merges any carried fields if present, so a re-listing run
// never wipes earlier enrichment. SetField updates exactly one field of an
// existing record and leaves the rest untouched. ScanMissingField returns only entries that
// do not yet carry the named field, a page at a time; passing the previous
// page's NextToken resumes the scan. Implementations may return pages in a
// different order on different scans, callers must not rely on ordering or
// on continuation tokens surviving across invocations.
type CatalogStore interface {
	Upsert(ctx context.Context, entry CatalogEntry) error
	Get(ctx context.Context, key EntryKey) (CatalogEntry, error)
	SetField(ctx context.Context, key EntryKey, field, value string) error
	ScanMissingField(ctx context.Context, field, startToken string, limit int) (ScanPage, error)
}

// TokenSource supplies a valid bearer token, reusing a cached one while it
// remains inside its validity window. Invalidate drops the cache so the next
// Token call performs a fresh exchange; it is called when a data request
// comes back unauthorized.
type TokenSource interface {
	Token(ctx context.Context) (BearerToken, error)
	Invalidate()
}

// EnrichmentStep is one bounded unit of enrichment work. MoreItems in the
// returned result tells the re-invocation driver whether to schedule another
// step. Implementations must be safe to re-invoke: a step that fails or is
// abandoned mid-batch leaves the store incompletely enriched, never
// inconsistent.
type EnrichmentStep interface {
	RunOnce(ctx context.Context) (StepResult, error)
}

// StepResult summarizes one enrichment invocation.
type StepResult struct {
	// MoreItems is true when the scan stopped before confirming the end of
	// the table (batch cap reached or time budget elapsed), i.e. another
	// invocation is needed.
	MoreItems bool
	// Scanned counts entries the invocation considered.
	Scanned int
	// Enriched counts entries whose field was fetched and stored.
	Enriched int
	// Skipped counts entries left unenriched after exhausting retries; the
	// next invocation's scan will pick them up again.
	Skipped int
}
