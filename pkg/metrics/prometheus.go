// Package metrics provides Prometheus metrics for the helio ingestion service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Imagery ingestion
	observationsStored prometheus.Counter
	slotsSkipped       prometheus.Counter
	slotsNotFound      prometheus.Counter
	duplicateSlots     prometheus.Counter
	extractionLatency  prometheus.Histogram
	contoursExtracted  *prometheus.CounterVec
	cursorLagSeconds   prometheus.Gauge
	cursorSlotUnix     prometheus.Gauge

	// Remote availability
	oracleFetches   prometheus.Counter
	oracleCacheHits prometheus.Counter
	fetchErrors     *prometheus.CounterVec
	retryAttempts   *prometheus.CounterVec

	// Region reports
	regionRecordsUpserted prometheus.Counter
	regionRuns            *prometheus.CounterVec

	// Storage
	storeLatency *prometheus.HistogramVec

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
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // registry served at /metrics

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "helio",
		subsystem:        "ingest",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.observationsStored = m.counter("observations_stored_total", "Observations persisted, one per slot")
	m.slotsSkipped = m.counter("slots_skipped_total", "Scheduled slots already present in storage")
	m.slotsNotFound = m.counter("slots_not_found_total", "Scheduled slots whose image was not published")
	m.duplicateSlots = m.counter("duplicate_slots_total", "Puts rejected by the slot uniqueness constraint")
	m.extractionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "extraction_latency_milliseconds",
		Help:        "Time to extract both contour families from one image",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.contoursExtracted = m.counterVec("contours_extracted_total", "Contours kept after filtering", "family")
	m.cursorLagSeconds = m.gauge("cursor_lag_seconds", "Distance between the scheduler cursor and the latest published slot")
	m.cursorSlotUnix = m.gauge("cursor_slot_unix", "Scheduler cursor as unix seconds")

	m.oracleFetches = m.counter("oracle_remote_fetches_total", "Remote latest-slot queries issued by the oracle")
	m.oracleCacheHits = m.counter("oracle_cache_hits_total", "Latest-slot lookups served from the oracle cache")
	m.fetchErrors = m.counterVec("fetch_errors_total", "Remote fetch failures by source and kind", "source", "kind")
	m.retryAttempts = m.counterVec("retry_attempts_total", "Fixed-delay retries by component", "component")

	m.regionRecordsUpserted = m.counter("region_records_upserted_total", "Region records written by the region job")
	m.regionRuns = m.counterVec("region_runs_total", "Region job runs by result", "result")

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "store_latency_milliseconds",
		Help:        "Storage operation latency by operation",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"op"})

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// ObservationStored counts a persisted observation and its contours.
func (m *Manager) ObservationStored(umbra, penumbra int) {
	m.observationsStored.Inc()
	m.contoursExtracted.WithLabelValues("umbra").Add(float64(umbra))
	m.contoursExtracted.WithLabelValues("penumbra").Add(float64(penumbra))
}

// Package-level helpers operating on the global manager.

// RecordObservationStored increments the stored counter and the per-family contour counters.
func RecordObservationStored(umbra, penumbra int) { globalManager.ObservationStored(umbra, penumbra) }

// RecordSlotSkipped counts a slot that was already stored.
func RecordSlotSkipped() { globalManager.slotsSkipped.Inc() }

// RecordSlotNotFound counts a slot with no published image.
func RecordSlotNotFound() { globalManager.slotsNotFound.Inc() }

// RecordDuplicateSlot counts a put rejected as a duplicate.
func RecordDuplicateSlot() { globalManager.duplicateSlots.Inc() }

// RecordExtractionLatency records extraction latency in milliseconds.
func RecordExtractionLatency(ms float64) { globalManager.extractionLatency.Observe(ms) }

// UpdateCursor publishes the scheduler cursor and its lag behind latest.
func UpdateCursor(cursorUnix, lagSeconds float64) {
	globalManager.cursorSlotUnix.Set(cursorUnix)
	globalManager.cursorLagSeconds.Set(lagSeconds)
}

// RecordOracleFetch counts a remote latest-slot query.
func RecordOracleFetch() { globalManager.oracleFetches.Inc() }

// RecordOracleCacheHit counts a cached latest-slot answer.
func RecordOracleCacheHit() { globalManager.oracleCacheHits.Inc() }

// RecordFetchError counts a remote failure by source and error kind.
func RecordFetchError(source, kind string) { globalManager.fetchErrors.WithLabelValues(source, kind).Inc() }

// RecordRetry counts one fixed-delay retry in component.
func RecordRetry(component string) { globalManager.retryAttempts.WithLabelValues(component).Inc() }

// RecordRegionRun counts a region job run and the records it wrote.
func RecordRegionRun(result string, records int) {
	globalManager.regionRuns.WithLabelValues(result).Inc()
	globalManager.regionRecordsUpserted.Add(float64(records))
}

// RecordStoreLatency records the latency of a storage operation.
func RecordStoreLatency(op string, ms float64) { globalManager.storeLatency.WithLabelValues(op).Observe(ms) }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
