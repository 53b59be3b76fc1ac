// Package metrics provides Prometheus metrics for the touchline service.
package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer
	auto             promauto.Factory

	// Ingestion
	eventsSubmitted     prometheus.Counter
	eventsAccepted      *prometheus.CounterVec
	eventsRejected      *prometheus.CounterVec
	eventsDuplicate     prometheus.Counter
	validationWarnings  prometheus.Counter
	ingestLatency       prometheus.Histogram
	persistenceLatency  prometheus.Histogram
	persistenceErrors   prometheus.Counter
	dedupeEntries       prometheus.Gauge
	lastSequenceByMatch *prometheus.GaugeVec

	// Sessions
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	activeSessions  prometheus.Gauge

	// Clock
	clockTransitions *prometheus.CounterVec
	runningClocks    prometheus.Gauge
	trackedMatches   prometheus.Gauge

	// Broadcast
	broadcastPublished prometheus.Counter
	broadcastDropped   prometheus.Counter
	subscribers        prometheus.Gauge
	laggingSubscribers prometheus.Counter

	// Dispatch queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Dispatch workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "touchline",
		subsystem:        "live",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.auto = promauto.With(m.registry)
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return m.auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return m.auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return m.auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return m.auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.eventsSubmitted = m.counter("events_submitted_total", "Total number of event submissions received")
	m.eventsAccepted = m.counterVec("events_accepted_total", "Total number of events accepted, by event type", "event_type")
	m.eventsRejected = m.counterVec("events_rejected_total", "Total number of rejected submissions, by reason", "reason")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Total number of duplicate submissions answered from the idempotency cache")
	m.validationWarnings = m.counter("validation_warnings_total", "Total number of non-blocking validation warnings returned")
	m.ingestLatency = m.histogram("ingest_latency_milliseconds", "End-to-end submission latency in milliseconds", m.histogramBuckets)
	m.persistenceLatency = m.histogram("persistence_latency_milliseconds", "Event store write latency in milliseconds", m.histogramBuckets)
	m.persistenceErrors = m.counter("persistence_errors_total", "Total number of failed event store writes")
	m.dedupeEntries = m.gauge("dedupe_entries", "Number of submission ids held by the idempotency cache")
	m.lastSequenceByMatch = m.auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "match_last_sequence",
		Help: "Last assigned event sequence per match", ConstLabels: m.constLabels,
	}, []string{"match_id"})

	m.sessionsStarted = m.counter("sessions_started_total", "Total number of entry sessions started")
	m.sessionsEnded = m.counterVec("sessions_ended_total", "Total number of entry sessions ended, by reason", "reason")
	m.activeSessions = m.gauge("active_sessions", "Number of currently active entry sessions")

	m.clockTransitions = m.counterVec("clock_transitions_total", "Clock control requests, by action and result", "action", "result")
	m.runningClocks = m.gauge("running_clocks", "Number of match clocks currently running")
	m.trackedMatches = m.gauge("tracked_matches", "Number of matches under live tracking")

	m.broadcastPublished = m.counter("broadcast_published_total", "Total number of notifications handed to the dispatcher")
	m.broadcastDropped = m.counter("broadcast_dropped_total", "Total number of notifications dropped because a dispatch queue was full")
	m.subscribers = m.gauge("subscribers", "Number of connected observers")
	m.laggingSubscribers = m.counter("subscribers_lagging_total", "Total number of observers disconnected for falling behind")

	m.queueSize = m.gauge("queue_size", "Current number of notifications waiting in dispatch queues")
	m.queueCapacity = m.gauge("queue_capacity", "Total capacity of the dispatch queues")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Dispatch queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of notifications enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of notifications dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue failures")

	m.workerCount = m.gauge("worker_count", "Number of dispatch workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time to deliver one notification to all subscribers", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of dispatch worker errors")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration in milliseconds", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Total number of errors by type", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "Most recent GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordEventSubmitted increments the submissions counter.
func RecordEventSubmitted() { globalManager.eventsSubmitted.Inc() }

// RecordEventAccepted increments the accepted counter for eventType.
func RecordEventAccepted(eventType string) {
	globalManager.eventsAccepted.WithLabelValues(eventType).Inc()
}

// RecordEventRejected increments the rejected counter; reason is validation or persistence.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate submissions counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordValidationWarnings adds n warnings.
func RecordValidationWarnings(n int) {
	if n > 0 {
		globalManager.validationWarnings.Add(float64(n))
	}
}

// RecordIngestLatency records submission latency in milliseconds.
func RecordIngestLatency(latencyMs float64) { globalManager.ingestLatency.Observe(latencyMs) }

// RecordPersistenceLatency records event store write latency in milliseconds.
func RecordPersistenceLatency(latencyMs float64) { globalManager.persistenceLatency.Observe(latencyMs) }

// RecordPersistenceError increments the persistence error counter.
func RecordPersistenceError() { globalManager.persistenceErrors.Inc() }

// UpdateDedupeEntries sets the idempotency cache size.
func UpdateDedupeEntries(n int) { globalManager.dedupeEntries.Set(float64(n)) }

// UpdateLastSequence sets the last assigned sequence of a match.
func UpdateLastSequence(matchID string, seq int64) {
	globalManager.lastSequenceByMatch.WithLabelValues(matchID).Set(float64(seq))
}

// RecordSessionStarted increments the started sessions counter.
func RecordSessionStarted() { globalManager.sessionsStarted.Inc() }

// RecordSessionEnded increments the ended sessions counter; reason is ended, forced or reaped.
func RecordSessionEnded(reason string) {
	globalManager.sessionsEnded.WithLabelValues(reason).Inc()
}

// UpdateActiveSessions sets the active sessions gauge.
func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

// RecordClockTransition counts a clock control request; result is ok or rejected.
func RecordClockTransition(action, result string) {
	globalManager.clockTransitions.WithLabelValues(action, result).Inc()
}

// UpdateRunningClocks sets the running clocks gauge.
func UpdateRunningClocks(n int) { globalManager.runningClocks.Set(float64(n)) }

// UpdateTrackedMatches sets the tracked matches gauge.
func UpdateTrackedMatches(n int) { globalManager.trackedMatches.Set(float64(n)) }

// RecordBroadcastPublished increments the published notifications counter.
func RecordBroadcastPublished() { globalManager.broadcastPublished.Inc() }

// RecordBroadcastDropped increments the dropped notifications counter.
func RecordBroadcastDropped() { globalManager.broadcastDropped.Inc() }

// UpdateSubscribers sets the connected observers gauge.
func UpdateSubscribers(n int) { globalManager.subscribers.Set(float64(n)) }

// RecordLaggingSubscriber increments the lagging observer counter.
func RecordLaggingSubscriber() { globalManager.laggingSubscribers.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of dispatch workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records dispatch latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

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

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// CollectRuntime samples heap usage, goroutines and the last GC pause.
func CollectRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		globalManager.systemGCPauseTime.Observe(float64(pause) / 1e6)
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
