// Package constraints validates a relation graph offline: it walks the
// stored relations and reports every place where the data no longer
// satisfies the registry's rules, without mutating anything.
package constraints

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// RelationReader defines the read-only operations needed for constraint
// validation. This interface enables dependency injection and makes
// constraints testable without a full relation store implementation.
type RelationReader interface {
	AllRelations(ctx context.Context) ([]*relations.Relation, error)
	ChildRelations(ctx context.Context, parentID uuid.UUID, typeID int) ([]*relations.Relation, error)
	ParentRelations(ctx context.Context, childID uuid.UUID, typeID int) ([]*relations.Relation, error)
}

// PIDReader resolves PIDs during validation of status-dependent constraints
type PIDReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*pidstore.PID, error)
}

// Severity indicates the importance of a violation
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "Info"
	case Warning:
		return "Warning"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// ViolationType categorizes the type of constraint violation
type ViolationType int

const (
	CardinalityViolation ViolationType = iota
	DuplicateRelation
	CycleDetected
	IndexGap
	StaleRedirect
	DanglingPID
)

func (vt ViolationType) String() string {
	switch vt {
	case CardinalityViolation:
		return "CardinalityViolation"
	case DuplicateRelation:
		return "DuplicateRelation"
	case CycleDetected:
		return "CycleDetected"
	case IndexGap:
		return "IndexGap"
	case StaleRedirect:
		return "StaleRedirect"
	case DanglingPID:
		return "DanglingPID"
	default:
		return "Unknown"
	}
}

// MarshalJSON renders the severity as its name
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalJSON renders the violation type as its name
func (vt ViolationType) MarshalJSON() ([]byte, error) {
	return json.Marshal(vt.String())
}

// Violation represents a constraint violation
type Violation struct {
	Type       ViolationType  `json:"type"`
	Severity   Severity       `json:"severity"`
	ParentID   *uuid.UUID     `json:"parent_id,omitempty"`
	ChildID    *uuid.UUID     `json:"child_id,omitempty"`
	Constraint string         `json:"constraint"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
}

// Constraint is the interface that all constraint types must implement.
// It uses the RelationReader interface for dependency injection, enabling
// easier testing and looser coupling to the storage implementation.
type Constraint interface {
	// Validate checks the constraint against the relation graph.
	// Returns a list of violations (empty if valid).
	Validate(ctx context.Context, reader RelationReader) ([]Violation, error)

	// Name returns a human-readable name for the constraint
	Name() string
}
