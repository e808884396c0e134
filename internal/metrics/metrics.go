package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordFeedFetch(feed, status string)
	RecordPipelineRun(duration time.Duration, persisted int)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordFeedFetch(feed, status string)                     {}
func (m *NoOpMetrics) RecordPipelineRun(duration time.Duration, persisted int) {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                    {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                  {}
func (m *NoOpMetrics) Handler() http.Handler                                   { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init initializes metrics (no-op for now, can be extended with Prometheus)
func Init() {
	// For now, keep using no-op metrics
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordFeedFetch records the outcome of a single feed fetch
func RecordFeedFetch(feed, status string) {
	globalMetrics.RecordFeedFetch(feed, status)
}

// RecordPipelineRun records an ingestion run
func RecordPipelineRun(duration time.Duration, persisted int) {
	globalMetrics.RecordPipelineRun(duration, persisted)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
