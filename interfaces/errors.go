package interfaces

import "errors"

// Error taxonomy for the pipeline. Components wrap these sentinels with
// fmt.Errorf("...: %w", err) so callers can classify with errors.Is while
// still seeing the operation that failed.
var (
	// ErrAuthRejected indicates the provider rejected the credentials or the
	// assertion signature. Terminal: retrying with the same key material
	// cannot succeed.
	ErrAuthRejected = errors.New("authentication rejected by provider")

	// ErrUnauthorized indicates an expired or invalid bearer token. The call
	// must not be retried with the same token; acquire a fresh one first.
	ErrUnauthorized = errors.New("bearer token rejected")

	// ErrRateLimited indicates the provider throttled the request. Transient;
	// retried with backoff up to the configured attempt cap.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrServer indicates a 5xx response from the provider. Transient.
	ErrServer = errors.New("provider server error")

	// ErrNetwork indicates a transport-level failure. Transient.
	ErrNetwork = errors.New("network error")

	// ErrStore indicates a failure reading or writing one of the external
	// stores. The invocation fails; re-invoking is safe because all store
	// writes are idempotent upserts.
	ErrStore = errors.New("store operation failed")

	// ErrEntryNotFound is returned by CatalogStore.Get for an unknown key.
	ErrEntryNotFound = errors.New("catalog entry not found")

	// ErrFieldMissing indicates the provider's detail document did not carry
	// the requested field.
	ErrFieldMissing = errors.New("field missing in detail document")
)
