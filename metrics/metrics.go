// Package metrics defines the Prometheus instrumentation for the pipeline.
// Counters are registered on the default registry and exposed by the ops
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "content_pipeline"

var (
	// ProviderRequests counts outbound provider API calls by outcome:
	// ok, rate_limited, unauthorized, server_error, network_error, rejected.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Outbound provider API requests by outcome.",
	}, []string{"outcome"})

	// RetryWaits counts backoff waits performed before retrying a request.
	RetryWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retry_waits_total",
		Help:      "Backoff waits performed before retrying a provider request.",
	})

	// TokenExchanges counts bearer token exchanges against the token endpoint.
	TokenExchanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_exchanges_total",
		Help:      "Bearer token exchanges performed.",
	})

	// EntriesEnriched counts catalog entries that received their field.
	EntriesEnriched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_enriched_total",
		Help:      "Catalog entries successfully enriched.",
	})

	// EntriesSkipped counts entries left for a later invocation after their
	// detail fetch exhausted retries.
	EntriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "entries_skipped_total",
		Help:      "Catalog entries skipped after exhausting retries.",
	})

	// CatalogUpserts counts records written by catalog listing runs.
	CatalogUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_upserts_total",
		Help:      "Catalog entries written by listing runs.",
	})
)
