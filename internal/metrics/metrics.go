package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_library_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Codec metrics
var (
	DecodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_decode_total",
			Help: "Total number of image decodes by backend and status",
		},
		[]string{"backend", "status"},
	)

	DecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_decode_duration_seconds",
			Help:    "Time spent decoding images",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"backend"},
	)

	EncodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_encode_total",
			Help: "Total number of image encodes by format and status",
		},
		[]string{"format", "status"},
	)

	EncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_encode_duration_seconds",
			Help:    "Time spent encoding images",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"format"},
	)
)

// Document metrics
var (
	EditOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_edit_operations_total",
			Help: "Edit operations applied to the open document",
		},
		[]string{"operation", "status"},
	)

	EditDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_edit_duration_seconds",
			Help:    "Time spent in pixel operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)

	StaleLoadsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_library_stale_loads_discarded_total",
			Help: "Decoded images dropped because a newer open request superseded them",
		},
	)

	DocumentPixels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_library_document_pixels",
			Help: "Pixel count of the open document (0 when none is open)",
		},
	)
)

// Metadata metrics
var (
	MetadataOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_metadata_operations_total",
			Help: "Metadata reads and rewrites by operation and result",
		},
		[]string{"operation", "result"},
	)

	MetadataRewriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "image_library_metadata_rewrite_duration_seconds",
			Help:    "Time spent rewriting embedded metadata",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)
)

// Description index metrics
var (
	DescriptionEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "image_library_description_entries",
			Help: "Number of entries in the in-memory description index",
		},
	)

	DescriptionPersistTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_description_persist_total",
			Help: "Description index loads and saves by operation and status",
		},
		[]string{"operation", "status"},
	)

	DescriptionPersistDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_description_persist_duration_seconds",
			Help:    "Time spent loading or saving the description index",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation"},
	)
)

// Event metrics
var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_events_published_total",
			Help: "Pipeline events published to observers",
		},
		[]string{"type"},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "image_library_filesystem_operation_duration_seconds",
			Help:    "Duration of filesystem operations",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_filesystem_operation_errors_total",
			Help: "Filesystem operations that returned an error",
		},
		[]string{"operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"operation"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "image_library_filesystem_stale_errors_total",
			Help: "ESTALE errors seen",
		},
		[]string{"operation"},
	)
)

// Status returns the label used for the status dimension of a counter.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
