package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pidrel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pidrel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pidrel_http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)
}

func (r *Registry) initStoreMetrics() {
	r.PIDsTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pidrel_pids_total",
			Help: "Number of persistent identifiers by status",
		},
		[]string{"status"},
	)

	r.RelationsTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pidrel_relations_total",
			Help: "Number of relations by relation type",
		},
		[]string{"relation_type"},
	)

	r.StoreOperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pidrel_store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	r.StoreOperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pidrel_store_operation_duration_seconds",
			Help:    "Store operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
}

func (r *Registry) initRelationMetrics() {
	r.RelationChangesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pidrel_relation_changes_total",
			Help: "Relation graph mutations by relation type and action",
		},
		[]string{"relation_type", "action"},
	)

	r.GuardRejectionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pidrel_guard_rejections_total",
			Help: "Relation inserts rejected by the consistency guard",
		},
		[]string{"relation_type", "reason"},
	)

	r.RedirectUpdatesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pidrel_redirect_updates_total",
			Help: "Head redirect retargets performed by version chains",
		},
	)

	r.DraftsPublishedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pidrel_drafts_published_total",
			Help: "Drafts published into their version chain",
		},
	)

	r.ValidationRunsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pidrel_validation_runs_total",
			Help: "Offline consistency validation runs",
		},
	)

	r.ValidationViolations = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pidrel_validation_violations",
			Help: "Violations found by the last validation run, by severity",
		},
		[]string{"severity"},
	)

	r.TraversalDepthVisited = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pidrel_traversal_depth",
			Help:    "Depth reached by graph traversals",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
		},
	)
}

func (r *Registry) initEventMetrics() {
	r.EventsPublishedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pidrel_events_published_total",
			Help: "Domain events published, by topic",
		},
		[]string{"topic"},
	)

	r.EventsDroppedTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pidrel_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full",
		},
	)

	r.EventSubscribersTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pidrel_event_subscribers",
			Help: "Currently attached event subscribers",
		},
	)

	r.AuthFailuresTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pidrel_auth_failures_total",
			Help: "Rejected authentication attempts",
		},
	)
}
