// Package metrics provides Prometheus metrics for the voiceprint client and stub.
package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by the client.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Cache lookup results.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// Manager owns every Prometheus collector used by the module.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Client side
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errorsByKind    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	uploadBytes     prometheus.Histogram
	toasts          prometheus.Counter

	// Stub server side
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	storedVoicePrints   prometheus.Gauge
}

// global pairs the package-level manager with the registry it writes to.
type global struct {
	manager  *Manager
	registry *prometheus.Registry
}

var current atomic.Pointer[global] //nolint:gochecknoglobals // singleton used by the package-level recorders

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the package-level manager with one built from opts on a fresh
// registry, so binaries can pick namespace, labels and buckets at startup.
// The custom registry carries no default Go collectors.
func Init(opts ...Option) *Manager {
	registry := prometheus.NewRegistry()
	opts = append(opts[:len(opts):len(opts)], WithPrometheusRegistry(registry))
	m := NewManager(opts...)
	current.Store(&global{manager: m, registry: registry})
	return m
}

func globalManager() *Manager { return current.Load().manager }

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "voiceprint",
		subsystem:        "client",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "requests_total",
		Help:        "Total number of API calls by operation, method and outcome",
		ConstLabels: constLabels,
	}, []string{"operation", "method", "outcome"})

	m.requestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "request_duration_milliseconds",
		Help:        "API call duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"operation", "method"})

	m.errorsByKind = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_total",
		Help:        "Total number of failed API calls by operation and error kind",
		ConstLabels: constLabels,
	}, []string{"operation", "kind"})

	m.cacheLookups = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_lookups_total",
		Help:        "Response cache lookups by result",
		ConstLabels: constLabels,
	}, []string{"result"})

	m.uploadBytes = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "upload_bytes",
		Help:        "Size of uploaded audio files in bytes",
		Buckets:     prometheus.ExponentialBuckets(16<<10, 2, 10),
		ConstLabels: constLabels,
	})

	m.toasts = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "toasts_total",
		Help:        "User-visible error notifications raised by the transport",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "http_requests_total",
		Help:        "Total number of stub HTTP requests by endpoint and method",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "http_request_duration_milliseconds",
		Help:        "Stub HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.storedVoicePrints = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "voiceprints",
		Help:        "Number of voiceprints held by the stub store",
		ConstLabels: constLabels,
	})
}

// RecordRequest records one finished API call.
func (m *Manager) RecordRequest(operation, method, outcome string, durationMs float64) error {
	if !m.enabled {
		return nil
	}
	if outcome != OutcomeSuccess && outcome != OutcomeError {
		return fmt.Errorf("%w: %q", ErrUnknownOutcome, outcome)
	}
	m.requests.WithLabelValues(operation, method, outcome).Inc()
	m.requestDuration.WithLabelValues(operation, method).Observe(durationMs)
	return nil
}

// RecordError records a failed API call by error kind.
func (m *Manager) RecordError(operation, kind string) {
	if m.enabled {
		m.errorsByKind.WithLabelValues(operation, kind).Inc()
	}
}

// RecordCacheLookup records a hit or miss of the response cache.
func (m *Manager) RecordCacheLookup(result string) {
	if m.enabled {
		m.cacheLookups.WithLabelValues(result).Inc()
	}
}

// RecordUploadBytes records the size of an uploaded file.
func (m *Manager) RecordUploadBytes(n int64) {
	if m.enabled {
		m.uploadBytes.Observe(float64(n))
	}
}

// RecordToast counts a user-visible error notification.
func (m *Manager) RecordToast() {
	if m.enabled {
		m.toasts.Inc()
	}
}

// RecordHTTPRequest records a stub HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateStoredVoicePrints sets the stub store size.
func (m *Manager) UpdateStoredVoicePrints(count int) {
	if m.enabled {
		m.storedVoicePrints.Set(float64(count))
	}
}

// RecordRequest records one finished API call on the global manager.
func RecordRequest(operation, method, outcome string, durationMs float64) error {
	return globalManager().RecordRequest(operation, method, outcome, durationMs)
}

// RecordError records a failed API call on the global manager.
func RecordError(operation, kind string) {
	globalManager().RecordError(operation, kind)
}

// RecordCacheLookup records a cache lookup on the global manager.
func RecordCacheLookup(result string) {
	globalManager().RecordCacheLookup(result)
}

// RecordUploadBytes records an upload size on the global manager.
func RecordUploadBytes(n int64) {
	globalManager().RecordUploadBytes(n)
}

// RecordToast counts a notification on the global manager.
func RecordToast() {
	globalManager().RecordToast()
}

// RecordHTTPRequest records a stub HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager().RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// UpdateStoredVoicePrints sets the stub store size on the global manager.
func UpdateStoredVoicePrints(count int) {
	globalManager().UpdateStoredVoicePrints(count)
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return current.Load().registry
}
