// Package metrics provides Prometheus metrics for the deal sync engine.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Engine metrics
	groupsProcessed   prometheus.Counter
	inputErrors       prometheus.Counter
	invariantErrors   prometheus.Counter
	eventsTotal       *prometheus.CounterVec
	actionsTotal      *prometheus.CounterVec
	ignoredRecords    *prometheus.CounterVec
	ignoredAmount     *prometheus.GaugeVec
	associationsTotal *prometheus.CounterVec
	planningLatency   prometheus.Histogram
	lastRunUnix       prometheus.Gauge
	lastRunDurationMs prometheus.Gauge

	// Repository metrics
	dealsTotal              prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue metrics
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerIdleCount         prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
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
		namespace:        "dealsync",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.groupsProcessed = auto.NewCounter(m.counter("groups_processed_total", "Total number of related license sets planned"))
	m.inputErrors = auto.NewCounter(m.counter("input_errors_total", "Total number of groups rejected for malformed input"))
	m.invariantErrors = auto.NewCounter(m.counter("invariant_violations_total", "Total number of invariant violations left untouched"))
	m.eventsTotal = auto.NewCounterVec(m.counter("events_total", "Lifecycle events by kind"), []string{"kind"})
	m.actionsTotal = auto.NewCounterVec(m.counter("actions_total", "Applied deal actions by kind"), []string{"kind"})
	m.ignoredRecords = auto.NewCounterVec(m.counter("ignored_records_total", "Ignored records by reason"), []string{"reason"})
	m.ignoredAmount = auto.NewGaugeVec(m.gauge("ignored_amount", "Vendor amount ignored in the last run by reason"), []string{"reason"})
	m.associationsTotal = auto.NewCounterVec(m.counter("associations_total", "Deal associations by target kind"), []string{"kind"})
	m.planningLatency = auto.NewHistogram(m.histogram("group_planning_latency_milliseconds", "Per-group timeline, event and action planning latency"))
	m.lastRunUnix = auto.NewGauge(m.gauge("last_run_unix", "Unix timestamp of the last finished run"))
	m.lastRunDurationMs = auto.NewGauge(m.gauge("last_run_duration_milliseconds", "Duration of the last finished run"))

	m.dealsTotal = auto.NewGauge(m.gauge("repository_deals_total", "Number of deals held by the registry"))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogram("repository_update_latency_milliseconds", "Deal registry write latency"))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogram("repository_query_latency_milliseconds", "Deal registry read latency"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Current number of queued group jobs"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum number of queued group jobs"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size over capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("queue_enqueue_total", "Total number of enqueued group jobs"))
	m.queueDequeueRate = auto.NewCounter(m.counter("queue_dequeue_total", "Total number of dequeued group jobs"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("queue_processing_latency_milliseconds", "Time a job spent queued"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Configured number of planning workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("worker_active_count", "Workers currently planning a group"))
	m.workerIdleCount = auto.NewGauge(m.gauge("worker_idle_count", "Workers waiting for a group"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds", "Per-job worker latency"))
	m.workerErrorRate = auto.NewCounter(m.counter("worker_errors_total", "Jobs whose planning failed"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "Report server requests"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "Report server request duration"),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counter("errors_total", "Errors by component and type"), []string{"component", "type"})
}

// Engine metrics.

// RecordGroupProcessed increments the planned groups counter.
func RecordGroupProcessed() {
	globalManager.groupsProcessed.Inc()
}

// RecordInputError increments the rejected groups counter.
func RecordInputError() {
	globalManager.inputErrors.Inc()
}

// RecordInvariantViolation increments the invariant violation counter.
func RecordInvariantViolation() {
	globalManager.invariantErrors.Inc()
}

// RecordEvent counts one lifecycle event.
func RecordEvent(kind string) {
	globalManager.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordAction counts one applied deal action.
func RecordAction(kind string) {
	globalManager.actionsTotal.WithLabelValues(kind).Inc()
}

// RecordIgnored counts ignored records under reason.
func RecordIgnored(reason string, count int) {
	globalManager.ignoredRecords.WithLabelValues(reason).Add(float64(count))
}

// UpdateIgnoredAmount sets the ignored amount of the last run under reason.
func UpdateIgnoredAmount(reason string, amount float64) {
	globalManager.ignoredAmount.WithLabelValues(reason).Set(amount)
}

// RecordAssociation counts one deal association of kind contact, company or partner.
func RecordAssociation(kind string) {
	globalManager.associationsTotal.WithLabelValues(kind).Inc()
}

// RecordPlanningLatency records per-group planning latency in milliseconds.
func RecordPlanningLatency(latencyMs float64) {
	globalManager.planningLatency.Observe(latencyMs)
}

// RecordRunFinished stamps the last run time and duration.
func RecordRunFinished(unix int64, durationMs float64) {
	globalManager.lastRunUnix.Set(float64(unix))
	globalManager.lastRunDurationMs.Set(durationMs)
}

// Repository metrics.

// UpdateDealsTotal sets the number of deals held by the registry.
func UpdateDealsTotal(count int) {
	globalManager.dealsTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records registry write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records registry read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue metrics.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker metrics.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// UpdateWorkerIdleCount sets the number of idle workers.
func UpdateWorkerIdleCount(count int) {
	globalManager.workerIdleCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP metrics.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the registry in the text exposition format to path,
// for the node exporter textfile collector.
func WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty textfile path", ErrTextfile)
	}
	if err := prometheus.WriteToTextfile(path, customRegistry); err != nil {
		return fmt.Errorf("%w: %v", ErrTextfile, err)
	}
	return nil
}
