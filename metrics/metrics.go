package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HuntsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_hunts_finished_total",
			Help: "Total number of hunt jobs that reached a terminal status",
		},
		[]string{"status"},
	)

	HuntDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iochunt_hunt_duration_seconds",
			Help:    "Wall time of hunt job executions",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		},
	)

	ActiveHunts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "iochunt_active_hunts",
			Help: "Number of hunt jobs currently running in this process",
		},
	)

	MatchesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_matches_recorded_total",
			Help: "Total number of matches persisted by hunt jobs",
		},
		[]string{"source"},
	)

	SourceQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_source_queries_total",
			Help: "Match source queries by outcome (ok, error, rejected)",
		},
		[]string{"source", "outcome"},
	)

	SourceQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iochunt_source_query_duration_seconds",
			Help:    "Latency of match source queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	SourceTruncations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_source_truncations_total",
			Help: "Queries whose result set was cut at the source result cap",
		},
		[]string{"source"},
	)

	QuickSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_quick_searches_total",
			Help: "Quick searches by classified kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	MatchReviews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_match_reviews_total",
			Help: "Match review toggles",
		},
		[]string{"reviewed"},
	)

	HuntEventPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "iochunt_hunt_event_publish_failures_total",
			Help: "Hunt lifecycle events that could not be published",
		},
	)

	SQLiteOpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "iochunt_sqlite_open_connections",
			Help: "Open SQLite connections per pool",
		},
		[]string{"pool"},
	)

	SQLiteWaitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iochunt_sqlite_wait_count_total",
			Help: "Connections waited for per pool",
		},
		[]string{"pool"},
	)
)
