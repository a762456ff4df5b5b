// Package metrics provides Prometheus metrics for the fairway contest service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency buckets in milliseconds.
var (
	defaultLatencyBuckets    = []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}         //nolint:gochecknoglobals // bucket layout
	defaultSettlementBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000} //nolint:gochecknoglobals // bucket layout
)

// Manager manages all Prometheus metrics for the fairway service.
type Manager struct {
	namespace         string
	subsystem         string
	histogramBuckets  []float64
	settlementBuckets []float64
	customLabels      map[string]string
	metricPrefix      string
	registry          prometheus.Registerer

	// Pricing
	pricingRuns       prometheus.Counter
	pricingRescales   prometheus.Counter
	pricingContestant prometheus.Counter
	pricingLatency    prometheus.Histogram

	// Entries
	entriesSubmitted *prometheus.CounterVec

	// Settlement
	settlementOutcomes *prometheus.CounterVec
	settlementLatency  *prometheus.HistogramVec
	payoutsWritten     prometheus.Counter
	prizeDistributed   prometheus.Counter
	roundingRemainder  prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	// Batch queue and workers
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueued     prometheus.Counter
	queueDequeued     prometheus.Counter
	queueErrors       *prometheus.CounterVec
	workerActiveCount prometheus.Gauge
	workerLatency     prometheus.Histogram
	workerErrors      prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps default Go collectors out of the exposition.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:         "fairway",
		histogramBuckets:  defaultLatencyBuckets,
		settlementBuckets: defaultSettlementBuckets,
		customLabels:      make(map[string]string),
		registry:          prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.customLabels,
		Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.pricingRuns = m.counter("pricing_runs_total", "Total number of pricing runs computed")
	m.pricingRescales = m.counter("pricing_rescales_total", "Pricing runs that required the global feasibility rescale")
	m.pricingContestant = m.counter("pricing_contestants_total", "Contestants priced across all runs")
	m.pricingLatency = m.histogram("pricing_latency_milliseconds", "Pricing run latency in milliseconds", m.histogramBuckets)

	m.entriesSubmitted = m.counterVec("entries_submitted_total", "Entry submissions by outcome", "outcome")

	m.settlementOutcomes = m.counterVec("settlement_outcomes_total",
		"Settlement invocations by operation and outcome", "operation", "outcome")
	m.settlementLatency = m.histogramVec("settlement_latency_milliseconds",
		"Settlement latency in milliseconds by operation", m.settlementBuckets, "operation")
	m.payoutsWritten = m.counter("settlement_payouts_written_total", "Payout rows written")
	m.prizeDistributed = m.counter("settlement_prize_distributed_minor_units_total", "Prize money allocated to payouts, minor units")
	m.roundingRemainder = m.counter("settlement_rounding_remainder_minor_units_total", "Net pool left undistributed by flooring, minor units")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", m.histogramBuckets, "operation")
	m.storeErrors = m.counterVec("store_errors_total", "Store operation failures", "operation")
	m.cacheLookups = m.counterVec("cache_lookups_total", "Read cache lookups by cache and result", "cache", "result")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		m.histogramBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint, method and type",
		"endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")

	m.queueSize = m.gauge("batch_queue_size", "Current number of queued settlement jobs")
	m.queueCapacity = m.gauge("batch_queue_capacity", "Capacity of the settlement job queue")
	m.queueEnqueued = m.counter("batch_queue_enqueued_total", "Settlement jobs enqueued")
	m.queueDequeued = m.counter("batch_queue_dequeued_total", "Settlement jobs dequeued")
	m.queueErrors = m.counterVec("batch_queue_errors_total", "Settlement job enqueue failures by reason", "reason")
	m.workerActiveCount = m.gauge("batch_workers_active", "Settlement workers currently running")
	m.workerLatency = m.histogram("batch_worker_latency_milliseconds", "Settlement job latency in milliseconds", m.settlementBuckets)
	m.workerErrors = m.counter("batch_worker_errors_total", "Settlement jobs that ended in an error")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets)
}

// Pricing.

// RecordPricingRun records one pricing run.
func RecordPricingRun(contestants int, rescaled bool, latencyMs float64) {
	globalManager.pricingRuns.Inc()
	globalManager.pricingContestant.Add(float64(contestants))
	if rescaled {
		globalManager.pricingRescales.Inc()
	}
	globalManager.pricingLatency.Observe(latencyMs)
}

// Entries.

// RecordEntrySubmission counts an entry submission by outcome (accepted, duplicate, invalid, error).
func RecordEntrySubmission(outcome string) {
	globalManager.entriesSubmitted.WithLabelValues(outcome).Inc()
}

// Settlement.

// RecordSettlement records the outcome of a settle or repair invocation.
func RecordSettlement(operation, outcome string, latencyMs float64) {
	globalManager.settlementOutcomes.WithLabelValues(operation, outcome).Inc()
	globalManager.settlementLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordPayoutsWritten adds newly written payout rows and their total amount.
func RecordPayoutsWritten(count int, amount int64) {
	globalManager.payoutsWritten.Add(float64(count))
	globalManager.prizeDistributed.Add(float64(amount))
}

// RecordRoundingRemainder adds the flooring remainder left in a net pool.
func RecordRoundingRemainder(amount int64) {
	globalManager.roundingRemainder.Add(float64(amount))
}

// Store.

// RecordStoreOperation records a store call latency and failure.
func RecordStoreOperation(operation string, latencyMs float64, err error) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
	if err != nil {
		globalManager.storeErrors.WithLabelValues(operation).Inc()
	}
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	globalManager.cacheLookups.WithLabelValues(cache, result).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// Batch queue and workers.

// UpdateQueueSize sets the current job queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueError counts an enqueue failure.
func RecordQueueError(reason string) {
	globalManager.queueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerJob records one processed job.
func RecordWorkerJob(latencyMs float64, failed bool) {
	globalManager.workerLatency.Observe(latencyMs)
	if failed {
		globalManager.workerErrors.Inc()
	}
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
