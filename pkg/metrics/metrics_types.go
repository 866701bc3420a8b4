// Package metrics exposes the service's Prometheus instrumentation behind a
// single Registry struct, so handlers and stores record through one place.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the application
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Store Metrics
	PIDsTotal              *prometheus.GaugeVec
	RelationsTotal         *prometheus.GaugeVec
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	// Relation Metrics
	RelationChangesTotal  *prometheus.CounterVec
	GuardRejectionsTotal  *prometheus.CounterVec
	RedirectUpdatesTotal  prometheus.Counter
	DraftsPublishedTotal  prometheus.Counter
	ValidationRunsTotal   prometheus.Counter
	ValidationViolations  *prometheus.GaugeVec
	TraversalDepthVisited prometheus.Histogram

	// Event Metrics
	EventsPublishedTotal  *prometheus.CounterVec
	EventsDroppedTotal    prometheus.Counter
	EventSubscribersTotal prometheus.Gauge

	// Security Metrics
	AuthFailuresTotal prometheus.Counter

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initHTTPMetrics()
	r.initStoreMetrics()
	r.initRelationMetrics()
	r.initEventMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
