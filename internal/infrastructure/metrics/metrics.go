// Package metrics holds the Prometheus metric set of the sync server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Sync metrics
	UploadsProcessed  prometheus.Counter
	ItemsSynced       prometheus.Counter
	ConflictsDetected prometheus.Counter
	UploadDuration    prometheus.Histogram
	DownloadsServed   prometheus.Counter
	TombstonesStored  prometheus.Counter

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthAttempts  *prometheus.CounterVec
	TokensIssued  prometheus.Counter
	TokensRefused prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		UploadsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_sync_uploads_total",
			Help: "Total number of processed upload batches",
		}),
		ItemsSynced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_sync_items_total",
			Help: "Total number of accepted sync items",
		}),
		ConflictsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_sync_conflicts_total",
			Help: "Total number of detected version conflicts",
		}),
		UploadDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "bolso_sync_upload_duration_seconds",
			Help:    "Duration of upload batch processing",
			Buckets: prometheus.DefBuckets,
		}),
		DownloadsServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_sync_downloads_total",
			Help: "Total number of served download requests",
		}),
		TombstonesStored: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_sync_tombstones_total",
			Help: "Total number of stored delete tombstones",
		}),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bolso_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bolso_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bolso_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"status"},
		),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_auth_tokens_issued_total",
			Help: "Total issued token pairs",
		}),
		TokensRefused: promauto.NewCounter(prometheus.CounterOpts{
			Name: "bolso_auth_tokens_refused_total",
			Help: "Total refused token requests",
		}),
	}
}
