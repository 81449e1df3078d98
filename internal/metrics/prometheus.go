package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the clinical audio service
type Metrics struct {
	// Session lifecycle metrics
	SessionsCreated   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionDuration   prometheus.Histogram

	// Chunk upload metrics
	UploadURLsIssued prometheus.Counter
	ChunksRecorded   prometheus.Counter
	DuplicateChunks  prometheus.Counter

	// Transcription metrics
	PartialTranscriptions       prometheus.Counter
	PartialTranscriptionErrors  prometheus.Counter
	PartialTranscriptionSeconds prometheus.Histogram
	FinalTranscriptions         prometheus.Counter
	FinalTranscriptionErrors    prometheus.Counter
	FinalTranscriptionSeconds   prometheus.Histogram

	// Transcript ledger metrics
	TranscriptsSaved    prometheus.Counter
	TranscriptConflicts prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_sessions_created_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_sessions_completed_total",
			Help: "Total number of recording sessions finalized",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_session_duration_seconds",
			Help:    "Duration of recording sessions from start to finalization",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10s .. ~2.8h
		}),

		UploadURLsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_upload_urls_issued_total",
			Help: "Total number of signed chunk upload URLs issued",
		}),
		ChunksRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_chunks_recorded_total",
			Help: "Total number of uploaded chunks recorded against sessions",
		}),
		DuplicateChunks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_duplicate_chunks_total",
			Help: "Total number of chunk notifications rejected as duplicate ordinals",
		}),

		PartialTranscriptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_partial_transcriptions_total",
			Help: "Total number of single-chunk live preview transcriptions",
		}),
		PartialTranscriptionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_partial_transcription_errors_total",
			Help: "Total number of partial transcriptions degraded to the failure sentinel",
		}),
		PartialTranscriptionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_partial_transcription_seconds",
			Help:    "Latency of single-chunk transcription calls",
			Buckets: prometheus.DefBuckets,
		}),
		FinalTranscriptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_final_transcriptions_total",
			Help: "Total number of whole-session final transcriptions",
		}),
		FinalTranscriptionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_final_transcription_errors_total",
			Help: "Total number of final transcriptions with at least one failure",
		}),
		FinalTranscriptionSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_final_transcription_seconds",
			Help:    "Latency of whole-session final transcription including persistence",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),

		TranscriptsSaved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcripts_saved_total",
			Help: "Total number of transcripts appended to patient records",
		}),
		TranscriptConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcript_conflicts_total",
			Help: "Total number of duplicate transcript submissions rejected",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_http_requests_total",
			Help: "Total number of HTTP requests by method, endpoint and status",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scribe_http_request_duration_seconds",
			Help:    "HTTP request latency by method and endpoint",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scribe_http_errors_total",
			Help: "Total number of HTTP error responses by method, endpoint and type",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// RecordHTTPRequest records a completed HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordHTTPError records an HTTP error response
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
