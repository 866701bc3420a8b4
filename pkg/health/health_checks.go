package health

import (
	"context"
	"fmt"
	"time"
)

// StoreCheck probes a backing store through its ping function. Both the PID
// store and the relation store expose a compatible Ping.
func StoreCheck(name string, ping func(ctx context.Context) error) CheckFunc {
	return func() Check {
		check := Check{
			Name: name,
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
		} else {
			check.Status = StatusHealthy
			check.Message = "Connected"
		}

		return check
	}
}

// RegistryCheck verifies that relation types are loaded
func RegistryCheck(countTypes func() int) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "relation_registry",
			Details: make(map[string]any),
		}

		count := countTypes()
		check.Details["relation_types"] = count

		if count == 0 {
			check.Status = StatusUnhealthy
			check.Message = "No relation types registered"
		} else {
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("%d relation types registered", count)
		}

		return check
	}
}

// ValidationCheck reports the findings of the most recent offline consistency
// run. A graph with error-level violations degrades the service rather than
// taking it down: reads still work, writes are guarded independently.
func ValidationCheck(lastRun func() (at time.Time, errors, warnings int)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "consistency",
			Details: make(map[string]any),
		}

		at, errors, warnings := lastRun()
		if at.IsZero() {
			check.Status = StatusHealthy
			check.Message = "No validation run yet"
			return check
		}

		check.Details["last_run"] = at
		check.Details["errors"] = errors
		check.Details["warnings"] = warnings

		switch {
		case errors > 0:
			check.Status = StatusDegraded
			check.Message = fmt.Sprintf("%d consistency errors", errors)
		case warnings > 0:
			check.Status = StatusHealthy
			check.Message = fmt.Sprintf("%d consistency warnings", warnings)
		default:
			check.Status = StatusHealthy
			check.Message = "Graph consistent"
		}

		return check
	}
}

// MemoryCheck creates a health check for memory usage
func MemoryCheck(getUsage func() (alloc, sys uint64)) CheckFunc {
	return func() Check {
		check := Check{
			Name:    "memory",
			Details: make(map[string]any),
		}

		alloc, sys := getUsage()

		check.Details["alloc_bytes"] = alloc
		check.Details["sys_bytes"] = sys

		usagePercent := float64(alloc) / float64(sys) * 100

		if usagePercent > 90 {
			check.Status = StatusDegraded
			check.Message = "High memory usage"
		} else {
			check.Status = StatusHealthy
			check.Message = "Memory usage normal"
		}

		return check
	}
}
