package constraints

import (
	"context"
	"fmt"
)

// UniquenessConstraint reports duplicate edges: more than one relation with
// the same parent, child and type. The stores enforce this on write, so any
// hit here points at data imported from outside or at index corruption.
type UniquenessConstraint struct{}

// Name returns the constraint name
func (uc *UniquenessConstraint) Name() string {
	return "UniquenessConstraint(parent,child,type)"
}

// Validate scans all relations and reports every duplicated edge once
func (uc *UniquenessConstraint) Validate(ctx context.Context, reader RelationReader) ([]Violation, error) {
	rels, err := reader.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	seen := make(map[string]int, len(rels))
	for _, rel := range rels {
		seen[rel.Key()]++
	}

	violations := make([]Violation, 0)
	reported := make(map[string]bool)
	for _, rel := range rels {
		key := rel.Key()
		if seen[key] < 2 || reported[key] {
			continue
		}
		reported[key] = true
		parentID, childID := rel.ParentID, rel.ChildID
		violations = append(violations, Violation{
			Type:       DuplicateRelation,
			Severity:   Error,
			ParentID:   &parentID,
			ChildID:    &childID,
			Constraint: uc.Name(),
			Message: fmt.Sprintf("relation %s -> %s (type %d) appears %d times",
				rel.ParentID, rel.ChildID, rel.TypeID, seen[key]),
			Details: map[string]any{
				"relation_type": rel.TypeID,
				"occurrences":   seen[key],
			},
		})
	}

	return violations, nil
}
