// Package metrics provides Prometheus metrics for the flames client and its stub backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the flames client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// API client metrics
	apiRequests        *prometheus.CounterVec
	apiRequestDuration *prometheus.HistogramVec
	apiRequestErrors   *prometheus.CounterVec

	// Session metrics
	sessionChanges *prometheus.CounterVec
	sessionActive  prometheus.Gauge

	// Playground and flag workflow
	generations    *prometheus.CounterVec
	flagsSubmitted *prometheus.CounterVec
	teamOperations *prometheus.CounterVec

	// Admin dashboard
	dashboardSectionErrors *prometheus.CounterVec
	exportBytes            *prometheus.CounterVec

	// Event bus
	busPublished   *prometheus.CounterVec
	busDropped     *prometheus.CounterVec
	busSubscribers prometheus.Gauge

	// Stub backend HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
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
		namespace:        "flames",
		subsystem:        "client",
		histogramBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.apiRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_requests_total",
		Help:        "Total number of backend API requests by endpoint, method and status",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status"})

	m.apiRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_request_duration_milliseconds",
		Help:        "Backend API request latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method"})

	m.apiRequestErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "api_request_errors_total",
		Help:        "Backend API request failures by endpoint and error type",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "error_type"})

	m.sessionChanges = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "session_changes_total",
		Help:        "Session changes by source (local, external) and kind (set, clear)",
		ConstLabels: m.constLabels,
	}, []string{"source", "kind"})

	m.sessionActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "session_active",
		Help:        "1 when an authenticated session is held, 0 otherwise",
		ConstLabels: m.constLabels,
	})

	m.generations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playground_generations_total",
		Help:        "Playground submissions by blind label and outcome",
		ConstLabels: m.constLabels,
	}, []string{"blind", "outcome"})

	m.flagsSubmitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "flags_submitted_total",
		Help:        "Flags submitted by category and outcome",
		ConstLabels: m.constLabels,
	}, []string{"category", "outcome"})

	m.teamOperations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "team_operations_total",
		Help:        "Team operations by kind and outcome",
		ConstLabels: m.constLabels,
	}, []string{"operation", "outcome"})

	m.dashboardSectionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dashboard_section_errors_total",
		Help:        "Admin dashboard sections that failed to load",
		ConstLabels: m.constLabels,
	}, []string{"section"})

	m.exportBytes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "export_bytes_total",
		Help:        "Bytes written by exports per format",
		ConstLabels: m.constLabels,
	}, []string{"format"})

	m.busPublished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "bus_events_published_total",
		Help:        "Events published on the in-process bus by topic",
		ConstLabels: m.constLabels,
	}, []string{"topic"})

	m.busDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "bus_events_dropped_total",
		Help:        "Events published after the bus was closed",
		ConstLabels: m.constLabels,
	}, []string{"topic"})

	m.busSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "bus_subscribers",
		Help:        "Current number of bus subscribers",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests served by the stub backend",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "http_request_duration_milliseconds",
		Help:        "Stub backend HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "stub",
		Name:        "errors_by_endpoint_total",
		Help:        "Stub backend errors by endpoint, method and error type",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})
}

// RecordAPIRequest records one backend API call with its latency.
func RecordAPIRequest(endpoint, method, status string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.apiRequests.WithLabelValues(endpoint, method, status).Inc()
	globalManager.apiRequestDuration.WithLabelValues(endpoint, method).Observe(latencyMs)
}

// RecordAPIError records a failed backend API call.
func RecordAPIError(endpoint, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.apiRequestErrors.WithLabelValues(endpoint, errorType).Inc()
}

// RecordSessionChange records a session mutation.
func RecordSessionChange(source, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionChanges.WithLabelValues(source, kind).Inc()
}

// UpdateSessionActive sets the session gauge.
func UpdateSessionActive(active bool) {
	v := 0.0
	if active {
		v = 1
	}
	globalManager.sessionActive.Set(v)
}

// RecordGeneration records a playground submission outcome.
func RecordGeneration(blind, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.generations.WithLabelValues(blind, outcome).Inc()
}

// RecordFlagSubmitted records a flag submission outcome.
func RecordFlagSubmitted(category, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.flagsSubmitted.WithLabelValues(category, outcome).Inc()
}

// RecordTeamOperation records a team create/join outcome.
func RecordTeamOperation(operation, outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.teamOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordDashboardSectionError records a dashboard section that failed to load.
func RecordDashboardSectionError(section string) {
	if !globalManager.enabled {
		return
	}
	globalManager.dashboardSectionErrors.WithLabelValues(section).Inc()
}

// RecordExportBytes adds to the exported bytes counter.
func RecordExportBytes(format string, n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.exportBytes.WithLabelValues(format).Add(float64(n))
}

// RecordBusPublish records an event published on the bus.
func RecordBusPublish(topic string) {
	globalManager.busPublished.WithLabelValues(topic).Inc()
}

// RecordBusDropped records an event published after close.
func RecordBusDropped(topic string) {
	globalManager.busDropped.WithLabelValues(topic).Inc()
}

// UpdateBusSubscribers sets the current subscriber count.
func UpdateBusSubscribers(count int) {
	globalManager.busSubscribers.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request served by the stub backend.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records stub backend HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records a stub backend error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
