// Package metrics holds the Prometheus collectors of the computation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query outcome metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsview_queries_total",
			Help: "Total number of computed series queries by final state",
		},
		[]string{"state"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tsview_query_duration_seconds",
			Help:    "Duration of computed series queries",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"combine_mode"},
	)

	// Fetch metrics
	PagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tsview_pages_fetched_total",
			Help: "Total number of cursor pages fetched from the data source",
		},
	)

	SeriesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tsview_series_fetched_total",
			Help: "Total number of series fragments fetched from the data source",
		},
	)

	// Output metrics
	PointsEmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tsview_points_emitted_total",
			Help: "Total number of points returned after combining, smoothing and simplification",
		},
	)

	LastRunSeries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tsview_last_run_series",
			Help: "Number of series returned by the last completed query",
		},
	)

	LastRunPointsRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tsview_last_run_points_ratio",
			Help: "Share of the project's measured points processed by the last completed query",
		},
	)

	// Storage metrics
	PointsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tsview_points_written_total",
			Help: "Total number of points written to the local store",
		},
		[]string{"project"},
	)
)
