package constraints

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// CardinalityConstraint validates that no PID exceeds the parent and child
// limits of one relation type
type CardinalityConstraint struct {
	Type *relations.RelationType
}

// Name returns the constraint name
func (cc *CardinalityConstraint) Name() string {
	return fmt.Sprintf("CardinalityConstraint(%s,[parents<=%d,children<=%d])",
		cc.Type.Name, cc.Type.MaxParents, cc.Type.MaxChildren)
}

// Validate counts edges per PID for the constraint's relation type and
// reports every PID over its limit
func (cc *CardinalityConstraint) Validate(ctx context.Context, reader RelationReader) ([]Violation, error) {
	rels, err := reader.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	children := make(map[uuid.UUID]int)
	parents := make(map[uuid.UUID]int)
	for _, rel := range rels {
		if rel.TypeID != cc.Type.ID {
			continue
		}
		children[rel.ParentID]++
		parents[rel.ChildID]++
	}

	violations := make([]Violation, 0)

	if cc.Type.MaxChildren > 0 {
		for id, count := range children {
			if count <= cc.Type.MaxChildren {
				continue
			}
			parentID := id
			violations = append(violations, Violation{
				Type:       CardinalityViolation,
				Severity:   Error,
				ParentID:   &parentID,
				Constraint: cc.Name(),
				Message: fmt.Sprintf("PID %s has %d %s children, maximum is %d",
					id, count, cc.Type.Name, cc.Type.MaxChildren),
				Details: map[string]any{
					"relation_type": cc.Type.Name,
					"count":         count,
					"max":           cc.Type.MaxChildren,
				},
			})
		}
	}

	if cc.Type.MaxParents > 0 {
		for id, count := range parents {
			if count <= cc.Type.MaxParents {
				continue
			}
			childID := id
			violations = append(violations, Violation{
				Type:       CardinalityViolation,
				Severity:   Error,
				ChildID:    &childID,
				Constraint: cc.Name(),
				Message: fmt.Sprintf("PID %s has %d %s parents, maximum is %d",
					id, count, cc.Type.Name, cc.Type.MaxParents),
				Details: map[string]any{
					"relation_type": cc.Type.Name,
					"count":         count,
					"max":           cc.Type.MaxParents,
				},
			})
		}
	}

	return violations, nil
}
