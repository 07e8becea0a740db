// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Generator metrics
	PointsGenerated prometheus.Counter
	SeriesGenerated *prometheus.CounterVec

	// Stream metrics
	ActiveSubscribers  prometheus.Gauge
	StreamMessagesSent *prometheus.CounterVec
	StreamTickErrors   prometheus.Counter

	// History metrics
	HistoryRequests *prometheus.CounterVec
	HistoryLatency  prometheus.Histogram

	// Recorder metrics
	PointsArchived prometheus.Counter
	ArchiveErrors  prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "metrics_feed"
	}

	return &Metrics{
		// Generator metrics
		PointsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "points_generated_total",
			Help:      "Total number of metric points generated",
		}),
		SeriesGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generator",
			Name:      "series_generated_total",
			Help:      "Total number of historical series generated by time range",
		}, []string{"time_range"}),

		// Stream metrics
		ActiveSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_subscribers",
			Help:      "Current number of active stream subscribers",
		}),
		StreamMessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_sent_total",
			Help:      "Total number of stream messages sent by type",
		}, []string{"type"}),
		StreamTickErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "tick_errors_total",
			Help:      "Total number of failed stream update ticks",
		}),

		// History metrics
		HistoryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "requests_total",
			Help:      "Total number of history requests by time range and status",
		}, []string{"time_range", "status"}),
		HistoryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "request_latency_seconds",
			Help:      "History request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Recorder metrics
		PointsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "points_archived_total",
			Help:      "Total number of metric points archived to storage",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "archive_errors_total",
			Help:      "Total number of archive flush errors",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPointGenerated increments the points generated counter.
func RecordPointGenerated() {
	DefaultMetrics.PointsGenerated.Inc()
}

// RecordSeriesGenerated increments the series generated counter.
func RecordSeriesGenerated(timeRange string) {
	DefaultMetrics.SeriesGenerated.WithLabelValues(timeRange).Inc()
}

// RecordSubscriberConnected increments the active subscribers gauge.
func RecordSubscriberConnected() {
	DefaultMetrics.ActiveSubscribers.Inc()
}

// RecordSubscriberDisconnected decrements the active subscribers gauge.
func RecordSubscriberDisconnected() {
	DefaultMetrics.ActiveSubscribers.Dec()
}

// RecordStreamMessage increments the stream messages sent counter.
func RecordStreamMessage(msgType string) {
	DefaultMetrics.StreamMessagesSent.WithLabelValues(msgType).Inc()
}

// RecordStreamTickError increments the stream tick errors counter.
func RecordStreamTickError() {
	DefaultMetrics.StreamTickErrors.Inc()
}

// RecordHistoryRequest records a history request with its latency.
func RecordHistoryRequest(timeRange string, status int, seconds float64) {
	DefaultMetrics.HistoryRequests.WithLabelValues(timeRange, strconv.Itoa(status)).Inc()
	DefaultMetrics.HistoryLatency.Observe(seconds)
}

// RecordPointsArchived adds to the points archived counter.
func RecordPointsArchived(n int) {
	DefaultMetrics.PointsArchived.Add(float64(n))
}

// RecordArchiveError increments the archive errors counter.
func RecordArchiveError() {
	DefaultMetrics.ArchiveErrors.Inc()
}
