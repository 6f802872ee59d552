// Package catalog acquires the provider's records into the catalog store.
//
// Two components share an authenticated fetcher:
//
//   - Lister enumerates the full remote catalog index in one bounded run,
//     following the provider's own pagination, and upserts one record per
//     item. Re-running it against an unchanged catalog is a no-op.
//
//   - Enricher performs one bounded unit of the "fill missing field" loop:
//     scan the store for entries lacking the configured field, fetch that
//     field for a batch of them, update the store, and report whether more
//     work remains. Completion over the whole table is an emergent property
//     of an external driver re-invoking it until MoreItems is false.
//
// Neither component keeps state between invocations; all coordination goes
// through the store's filter and pagination.
package catalog
