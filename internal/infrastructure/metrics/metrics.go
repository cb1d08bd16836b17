package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gallery-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Cache lookups by outcome (hit, miss, error)
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by key family and outcome",
		},
		[]string{"family", "outcome"},
	)

	CacheInvalidatedKeysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "cache_invalidated_keys_total",
			Help:      "Keys removed by pattern invalidation",
		},
	)

	// Upload batches by terminal state
	UploadBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "upload_batches_total",
			Help:      "Upload batches by terminal state",
		},
		[]string{"state"},
	)

	UploadBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "upload_bytes_total",
			Help:      "Total bytes committed by uploads",
		},
		[]string{"kind"},
	)

	CompensatingDeletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "compensating_deletes_total",
			Help:      "Blob deletes issued to undo partially applied uploads",
		},
		[]string{"status"},
	)

	ArchiveEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "archive_entries_total",
			Help:      "Album archive entries by outcome",
		},
		[]string{"outcome"},
	)

	// Blob store operations
	BlobOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "blob_operations_total",
			Help:      "Total blob store operations",
		},
		[]string{"operation", "status"},
	)

	BlobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "gallery_api",
			Name:      "blob_duration_seconds",
			Help:      "Blob store operation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 30},
		},
		[]string{"operation"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordCacheLookup records a cache lookup outcome.
func RecordCacheLookup(family, outcome string) {
	CacheLookupsTotal.WithLabelValues(family, outcome).Inc()
}

// RecordInvalidation records keys removed by a pattern invalidation.
func RecordInvalidation(keys int64) {
	if keys > 0 {
		CacheInvalidatedKeysTotal.Add(float64(keys))
	}
}

// RecordUploadBatch records an upload batch reaching a terminal state.
func RecordUploadBatch(state string) {
	UploadBatchesTotal.WithLabelValues(state).Inc()
}

// RecordUploadBytes records committed upload bytes.
func RecordUploadBytes(kind string, bytes int64) {
	UploadBytesTotal.WithLabelValues(kind).Add(float64(bytes))
}

// RecordCompensatingDelete records one compensating blob delete.
func RecordCompensatingDelete(status string) {
	CompensatingDeletesTotal.WithLabelValues(status).Inc()
}

// RecordArchiveEntry records the outcome of one archive entry.
func RecordArchiveEntry(outcome string) {
	ArchiveEntriesTotal.WithLabelValues(outcome).Inc()
}

// RecordBlobOperation records a blob store operation
func RecordBlobOperation(operation, status string, durationSec float64) {
	BlobOperationsTotal.WithLabelValues(operation, status).Inc()
	BlobDuration.WithLabelValues(operation).Observe(durationSec)
}
