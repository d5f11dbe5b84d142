// Package metrics provides Prometheus metrics for the dealflow pipeline service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the dealflow service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Pipeline Metrics - view model assembly
	viewBuilds    prometheus.Counter
	viewFallbacks prometheus.Counter

	// Store Metrics - record store adapter
	storeReads        prometheus.Counter
	storeWrites       prometheus.Counter
	storeReadLatency  prometheus.Histogram
	storeWriteLatency prometheus.Histogram
	storeWatchers     prometheus.Gauge
	recordsTotal      prometheus.Gauge

	// Subscription Metrics - live view model delivery
	subscriptionsActive prometheus.Gauge
	subscriptionUpdates prometheus.Counter

	// Diligence Metrics - trigger/poll protocol
	diligenceTriggers      prometheus.Counter
	diligenceTriggerErrors prometheus.Counter
	diligencePolls         prometheus.Counter
	diligencePollErrors    prometheus.Counter
	diligenceCompleted     prometheus.Counter
	diligenceErrored       prometheus.Counter
	diligenceActive        prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics - detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dealflow",
		subsystem:        "pipeline",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric inventory is one long list by nature
	auto := promauto.With(m.registry)

	m.viewBuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_builds_total",
		Help:      "Total number of view models assembled from raw records",
	})

	m.viewFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "view_fallbacks_total",
		Help:      "Total number of builds that degraded to the fallback model (data quality indicator)",
	})

	m.storeReads = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_reads_total",
		Help:      "Total number of record snapshot reads",
	})

	m.storeWrites = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_writes_total",
		Help:      "Total number of record writes from workers and the upload path",
	})

	m.storeReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_read_latency_milliseconds",
		Help:      "Histogram of snapshot read latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_latency_milliseconds",
		Help:      "Histogram of record write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storeWatchers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_watchers",
		Help:      "Current number of attached change-stream watchers",
	})

	m.recordsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_total",
		Help:      "Total number of deal records in the store (business scale)",
	})

	m.subscriptionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscriptions_active",
		Help:      "Current number of live view model subscriptions",
	})

	m.subscriptionUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscription_updates_total",
		Help:      "Total number of view model updates delivered to subscribers",
	})

	m.diligenceTriggers = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_triggers_total",
		Help:      "Total number of diligence runs requested from the worker",
	})

	m.diligenceTriggerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_trigger_errors_total",
		Help:      "Total number of failed outbound trigger requests",
	})

	m.diligencePolls = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_polls_total",
		Help:      "Total number of status polls issued to the diligence worker",
	})

	m.diligencePollErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_poll_errors_total",
		Help:      "Total number of transient poll failures",
	})

	m.diligenceCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_completed_total",
		Help:      "Total number of diligence runs that reached Completed",
	})

	m.diligenceErrored = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_errored_total",
		Help:      "Total number of diligence runs that reached Errored",
	})

	m.diligenceActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "diligence_active",
		Help:      "Current number of in-flight diligence runs",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds (user experience)",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_component_total",
			Help:      "Total errors by component and error type",
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_type_total",
			Help:      "Total errors by error type and severity",
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "errors_by_endpoint_total",
			Help:      "Total errors by endpoint, method and error type",
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "error_latency_milliseconds",
			Help:      "Latency of failed operations in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordViewBuild increments the view builds counter.
func RecordViewBuild() {
	globalManager.viewBuilds.Inc()
}

// RecordViewFallback increments the fallback builds counter.
func RecordViewFallback() {
	globalManager.viewFallbacks.Inc()
}

// RecordStoreRead increments the store reads counter.
func RecordStoreRead() {
	globalManager.storeReads.Inc()
}

// RecordStoreWrite increments the store writes counter.
func RecordStoreWrite() {
	globalManager.storeWrites.Inc()
}

// RecordStoreReadLatency records snapshot read latency in milliseconds.
func RecordStoreReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

// RecordStoreWriteLatency records record write latency in milliseconds.
func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

// UpdateStoreWatcherCount sets the current number of store watchers.
func UpdateStoreWatcherCount(count int) {
	globalManager.storeWatchers.Set(float64(count))
}

// UpdateRecordsTotal sets the total record count.
func UpdateRecordsTotal(count int) {
	globalManager.recordsTotal.Set(float64(count))
}

// UpdateSubscriptionCount sets the current number of live subscriptions.
func UpdateSubscriptionCount(count int) {
	globalManager.subscriptionsActive.Set(float64(count))
}

// RecordSubscriptionUpdate increments the delivered updates counter.
func RecordSubscriptionUpdate() {
	globalManager.subscriptionUpdates.Inc()
}

// RecordDiligenceTrigger increments the diligence triggers counter.
func RecordDiligenceTrigger() {
	globalManager.diligenceTriggers.Inc()
}

// RecordDiligenceTriggerError increments the failed trigger counter.
func RecordDiligenceTriggerError() {
	globalManager.diligenceTriggerErrors.Inc()
}

// RecordDiligencePoll increments the polls counter.
func RecordDiligencePoll() {
	globalManager.diligencePolls.Inc()
}

// RecordDiligencePollError increments the transient poll failure counter.
func RecordDiligencePollError() {
	globalManager.diligencePollErrors.Inc()
}

// RecordDiligenceCompleted increments the completed runs counter.
func RecordDiligenceCompleted() {
	globalManager.diligenceCompleted.Inc()
}

// RecordDiligenceErrored increments the errored runs counter.
func RecordDiligenceErrored() {
	globalManager.diligenceErrored.Inc()
}

// UpdateDiligenceActive sets the number of in-flight diligence runs.
func UpdateDiligenceActive(count int) {
	globalManager.diligenceActive.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a specific component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error for a specific endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the current memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the current goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause duration.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used for metric exposition.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
