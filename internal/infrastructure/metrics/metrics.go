package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Assistant-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Chunk counters by processor and type
	ChunksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "chunks_total",
			Help:      "Total normalized chunks streamed to clients",
		},
		[]string{"processor", "type"},
	)

	// Stream duration histogram
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "stream_duration_seconds",
			Help:      "Model stream duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"processor"},
	)

	// Tool call counters
	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "tool_calls_total",
			Help:      "Total MCP tool invocations",
		},
		[]string{"tool_name", "status"},
	)

	// File upload counters
	FileUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "file_uploads_total",
			Help:      "Total provider file uploads",
		},
		[]string{"status"},
	)

	// Vector store cleanup counters
	CleanupRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assistant",
			Subsystem: "api",
			Name:      "cleanup_runs_total",
			Help:      "Total vector store cleanup sweeps",
		},
		[]string{"status"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordChunk records one streamed chunk
func RecordChunk(processor, chunkType string) {
	ChunksTotal.WithLabelValues(processor, chunkType).Inc()
}

// RecordStream records a completed model stream
func RecordStream(processor string, durationSec float64) {
	StreamDuration.WithLabelValues(processor).Observe(durationSec)
}

// RecordToolCall records an MCP tool invocation
func RecordToolCall(toolName, status string) {
	ToolCallsTotal.WithLabelValues(toolName, status).Inc()
}

// RecordFileUpload records a provider file upload
func RecordFileUpload(status string) {
	FileUploadsTotal.WithLabelValues(status).Inc()
}

// RecordCleanupRun records a cleanup sweep
func RecordCleanupRun(status string) {
	CleanupRunsTotal.WithLabelValues(status).Inc()
}
