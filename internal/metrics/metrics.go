// Package metrics provides Prometheus metrics for the Riftbound price tracker.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riftbound_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "riftbound_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Snapshot Run Metrics
	SnapshotRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riftbound_snapshot_runs_total",
			Help: "Total number of snapshot ingestion runs by outcome",
		},
		[]string{"outcome"}, // "success", "fetch_error", "store_error", "skipped"
	)

	SnapshotRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riftbound_snapshot_run_duration_seconds",
			Help:    "Wall-clock duration of a snapshot run (dominated by inter-page delays)",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	SnapshotRowsStored = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riftbound_snapshot_rows_stored",
			Help: "Number of price rows stored by the most recent successful run",
		},
	)

	SnapshotLastSuccessTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riftbound_snapshot_last_success_timestamp_seconds",
			Help: "Unix time of the last successful snapshot run",
		},
	)

	// JustTCG API Metrics
	JustTCGRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riftbound_justtcg_requests_total",
			Help: "Total number of JustTCG API requests made",
		},
	)

	JustTCGPagesLastFetch = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riftbound_justtcg_pages_last_fetch",
			Help: "Number of pages requested during the most recent catalog fetch",
		},
	)

	// Query Engine Metrics
	QueryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riftbound_query_cache_hits_total",
			Help: "Ranking query cache hit count",
		},
	)

	QueryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riftbound_query_cache_misses_total",
			Help: "Ranking query cache miss count",
		},
	)
)
