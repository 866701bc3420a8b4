package constraints

import (
	"context"
	"time"

	"github.com/pidstack/pidrelations/pkg/relations"
)

// ValidationResult contains the results of validating a relation graph
type ValidationResult struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// GetViolationsBySeverity returns violations filtered by severity level
func (vr *ValidationResult) GetViolationsBySeverity(severity Severity) []Violation {
	filtered := make([]Violation, 0)
	for _, v := range vr.Violations {
		if v.Severity == severity {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// GetViolationsByType returns violations filtered by type
func (vr *ValidationResult) GetViolationsByType(violationType ViolationType) []Violation {
	filtered := make([]Violation, 0)
	for _, v := range vr.Violations {
		if v.Type == violationType {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Validator manages a set of constraints and validates relation graphs
// against them
type Validator struct {
	constraints []Constraint
}

// NewValidator creates a new empty validator
func NewValidator() *Validator {
	return &Validator{
		constraints: make([]Constraint, 0),
	}
}

// NewRegistryValidator creates a validator carrying the full rule set for
// every relation type in the registry
func NewRegistryValidator(registry *relations.Registry, pids PIDReader) *Validator {
	v := NewValidator()
	v.AddConstraint(&UniquenessConstraint{})
	for _, rt := range registry.All() {
		if rt.MaxParents > 0 || rt.MaxChildren > 0 {
			v.AddConstraint(&CardinalityConstraint{Type: rt})
		}
		v.AddConstraint(&AcyclicityConstraint{Type: rt})
		if rt.Ordered {
			v.AddConstraint(&IndexContiguityConstraint{Type: rt})
			v.AddConstraint(&RedirectConstraint{Type: rt, PIDs: pids})
		}
	}
	return v
}

// AddConstraint adds a constraint to the validator
func (v *Validator) AddConstraint(constraint Constraint) {
	v.constraints = append(v.constraints, constraint)
}

// AddConstraints adds multiple constraints to the validator
func (v *Validator) AddConstraints(constraints []Constraint) {
	v.constraints = append(v.constraints, constraints...)
}

// Validate runs all constraints against the relation graph
func (v *Validator) Validate(ctx context.Context, reader RelationReader) (*ValidationResult, error) {
	result := &ValidationResult{
		Valid:      true,
		Violations: make([]Violation, 0),
		CheckedAt:  time.Now(),
	}

	for _, constraint := range v.constraints {
		violations, err := constraint.Validate(ctx, reader)
		if err != nil {
			return nil, err
		}

		if len(violations) > 0 {
			result.Valid = false
			result.Violations = append(result.Violations, violations...)
		}
	}

	return result, nil
}

// GetConstraints returns all constraints in the validator
func (v *Validator) GetConstraints() []Constraint {
	return v.constraints
}
