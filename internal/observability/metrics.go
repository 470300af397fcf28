package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "tracker"

// Metrics holds the Prometheus collectors of the tracker. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	errorCount        *prometheus.CounterVec
	subscriptions     prometheus.Gauge
	roleLookupRetries prometheus.Counter
	roleResolutions   *prometheus.CounterVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "HTTP requests by path, method and status."},
			[]string{"path", "method", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request latency.", Buckets: prometheus.DefBuckets},
			[]string{"path", "method"},
		),
		errorCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "errors_total", Help: "Errors returned to callers by code."},
			[]string{"path", "method", "code"},
		),
		subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "live_subscriptions", Help: "Open live ticket subscriptions."},
		),
		roleLookupRetries: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "role_lookup_retries_total", Help: "Profile reads retried while resolving a role."},
		),
		roleResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "role_resolutions_total", Help: "Role resolutions by outcome."},
			[]string{"outcome"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.requestCount,
		m.requestDuration,
		m.errorCount,
		m.subscriptions,
		m.roleLookupRetries,
		m.roleResolutions,
	)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errorCount.WithLabelValues(path, method, code).Inc()
}

// SubscriptionOpened tracks a new live subscription.
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionClosed tracks a cancelled live subscription.
func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// RecordRoleLookupRetry counts one retried profile read.
func (m *Metrics) RecordRoleLookupRetry() {
	if m == nil {
		return
	}
	m.roleLookupRetries.Inc()
}

// RecordRoleResolution counts a finished role resolution by outcome code.
func (m *Metrics) RecordRoleResolution(outcome string) {
	if m == nil {
		return
	}
	m.roleResolutions.WithLabelValues(outcome).Inc()
}
