package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SearchDuration measures how long search-pipeline operations take.
// The 'operation' label distinguishes 'search', 'index', 'bulk' and 'reindex'.
var SearchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "search_operation_duration_seconds",
		Help: "Duration of search and indexing operations in seconds",
		// Fast queries on the left, bulk reindex passes on the right.
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
	},
	[]string{"operation"},
)

// DocumentsIndexed counts documents written to the search index.
var DocumentsIndexed = promauto.NewCounter(prometheus.CounterOpts{
	Name: "search_documents_indexed_total",
	Help: "Total documents upserted into the search index",
})

// BulkItemFailures counts per-document errors inside bulk responses.
// These are logged and skipped, never retried automatically.
var BulkItemFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "search_bulk_item_failures_total",
	Help: "Individual document failures within bulk index requests",
})

// DegradedSkips counts calls short-circuited because the search backend
// is unreachable.
var DegradedSkips = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_degraded_skips_total",
		Help: "Operations skipped while the search backend is degraded",
	},
	[]string{"operation"},
)

// CacheLookups counts query-result cache hits and misses.
var CacheLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_cache_lookups_total",
		Help: "Search result cache lookups by outcome",
	},
	[]string{"result"},
)

// EventsProcessed counts consumed catalog events by type and outcome.
var EventsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_events_processed_total",
		Help: "Catalog events consumed by the indexer worker",
	},
	[]string{"type", "outcome"},
)
