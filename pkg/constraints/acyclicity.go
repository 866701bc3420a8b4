package constraints

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// AcyclicityConstraint validates that the relations of one type form a DAG.
// The guard rejects cycle-closing inserts online; this catches cycles that
// slipped in through imports or concurrent writers on different stores.
type AcyclicityConstraint struct {
	Type *relations.RelationType
}

// Name returns the constraint name
func (ac *AcyclicityConstraint) Name() string {
	return fmt.Sprintf("AcyclicityConstraint(%s)", ac.Type.Name)
}

// Validate runs an iterative three-color DFS over the type's subgraph and
// reports one violation per back edge found
func (ac *AcyclicityConstraint) Validate(ctx context.Context, reader RelationReader) ([]Violation, error) {
	rels, err := reader.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	adjacency := make(map[uuid.UUID][]uuid.UUID)
	for _, rel := range rels {
		if rel.TypeID != ac.Type.ID {
			continue
		}
		adjacency[rel.ParentID] = append(adjacency[rel.ParentID], rel.ChildID)
	}

	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // fully explored
	)
	color := make(map[uuid.UUID]int, len(adjacency))

	violations := make([]Violation, 0)

	var visit func(node uuid.UUID)
	visit = func(node uuid.UUID) {
		color[node] = gray
		for _, next := range adjacency[node] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				parentID, childID := node, next
				violations = append(violations, Violation{
					Type:       CycleDetected,
					Severity:   Error,
					ParentID:   &parentID,
					ChildID:    &childID,
					Constraint: ac.Name(),
					Message: fmt.Sprintf("relation %s -> %s closes a %s cycle",
						node, next, ac.Type.Name),
					Details: map[string]any{
						"relation_type": ac.Type.Name,
					},
				})
			}
		}
		color[node] = black
	}

	for node := range adjacency {
		if color[node] == white {
			visit(node)
		}
	}

	return violations, nil
}
