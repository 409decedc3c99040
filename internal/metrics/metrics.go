// Package metrics holds the Prometheus collectors of the search service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchRequests counts keyword searches by outcome: ok, empty, unavailable, error.
	SearchRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsearch_requests_total",
			Help: "Keyword search requests by outcome",
		},
		[]string{"outcome"},
	)

	SearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobsearch_index_query_duration_seconds",
			Help:    "Duration of full-text index queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// IndexAvailable is 1 while the full-text index is available, 0 when degraded.
	IndexAvailable = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jobsearch_index_available",
			Help: "Whether the full-text index is available (1) or degraded (0)",
		},
	)

	IndexedDocuments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsearch_index_operations_total",
			Help: "Index upserts and deletes by operation and result",
		},
		[]string{"operation", "result"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsearch_cache_hits_total",
			Help: "Read-through cache hits by key prefix",
		},
		[]string{"prefix"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobsearch_cache_misses_total",
			Help: "Read-through cache misses by key prefix",
		},
		[]string{"prefix"},
	)

	FeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobsearch_feed_duration_seconds",
			Help:    "Duration of discovery and recommendation feeds in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)
)
