package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SyncsTotal tracks sync attempts by outcome
	SyncsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotivault_syncs_total",
			Help: "Total number of playlist sync attempts",
		},
		[]string{"status"},
	)

	// SyncDuration tracks how long downloader processes run
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotivault_sync_duration_seconds",
			Help:    "Downloader process duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68min
		},
	)

	// MetadataRefreshesTotal tracks metadata refreshes by outcome
	MetadataRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotivault_metadata_refreshes_total",
			Help: "Total number of playlist metadata refreshes",
		},
		[]string{"status"},
	)

	// MetadataRefreshDuration tracks metadata refresh latency
	MetadataRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spotivault_metadata_refresh_duration_seconds",
			Help:    "Metadata refresh duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ReconcileRunsTotal counts download status reconciliations
	ReconcileRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spotivault_reconcile_runs_total",
			Help: "Total number of download status reconciliations",
		},
	)

	// PlaylistsTracked is the number of playlists in the registry
	PlaylistsTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotivault_playlists_tracked",
			Help: "Number of playlists currently tracked",
		},
	)

	// ActiveSyncs is the number of live downloader processes
	ActiveSyncs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spotivault_active_syncs",
			Help: "Number of downloader processes currently running",
		},
	)

	// CleanupEvictionsTotal counts TTL evictions by entity kind
	CleanupEvictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotivault_cleanup_evictions_total",
			Help: "Total number of content evictions by the cleanup scheduler",
		},
		[]string{"kind"},
	)

	// HTTPRequestsTotal tracks dashboard API requests
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotivault_http_requests_total",
			Help: "Total number of dashboard API requests",
		},
		[]string{"path", "status"},
	)

	// HTTPRequestDuration tracks dashboard API request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotivault_http_request_duration_seconds",
			Help:    "Dashboard API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotivault_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

// RecordSyncStart records a downloader process launch
func RecordSyncStart() {
	ActiveSyncs.Inc()
}

// RecordSyncComplete records a downloader process exit
func RecordSyncComplete(success bool, duration time.Duration) {
	status := "completed"
	if !success {
		status = "failed"
	}
	SyncsTotal.WithLabelValues(status).Inc()
	SyncDuration.Observe(duration.Seconds())
	ActiveSyncs.Dec()
}

// RecordMetadataRefresh records a metadata refresh outcome
func RecordMetadataRefresh(success bool, duration time.Duration) {
	status := "completed"
	if !success {
		status = "failed"
	}
	MetadataRefreshesTotal.WithLabelValues(status).Inc()
	MetadataRefreshDuration.Observe(duration.Seconds())
}

// RecordError records an error by type
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordHTTPRequest records a dashboard API request
func RecordHTTPRequest(path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(path, status).Inc()
	HTTPRequestDuration.WithLabelValues(path).Observe(duration.Seconds())
}
