package metrics

import (
	"time"
)

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordStoreOperation records a store operation
func (r *Registry) RecordStoreOperation(operation, status string, duration time.Duration) {
	r.StoreOperationsTotal.WithLabelValues(operation, status).Inc()
	r.StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRelationChange records a relation graph mutation
func (r *Registry) RecordRelationChange(relationType, action string) {
	r.RelationChangesTotal.WithLabelValues(relationType, action).Inc()
}

// RecordGuardRejection records an insert rejected by the consistency guard
func (r *Registry) RecordGuardRejection(relationType, reason string) {
	r.GuardRejectionsTotal.WithLabelValues(relationType, reason).Inc()
}

// RecordValidation records an offline validation run and its findings
func (r *Registry) RecordValidation(errors, warnings, infos int) {
	r.ValidationRunsTotal.Inc()
	r.ValidationViolations.WithLabelValues("error").Set(float64(errors))
	r.ValidationViolations.WithLabelValues("warning").Set(float64(warnings))
	r.ValidationViolations.WithLabelValues("info").Set(float64(infos))
}

// UpdateGraphSize updates the PID and relation population gauges
func (r *Registry) UpdateGraphSize(pidsByStatus map[string]int, relationsByType map[string]int) {
	for status, count := range pidsByStatus {
		r.PIDsTotal.WithLabelValues(status).Set(float64(count))
	}
	for relationType, count := range relationsByType {
		r.RelationsTotal.WithLabelValues(relationType).Set(float64(count))
	}
}
