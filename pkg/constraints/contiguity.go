package constraints

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// IndexContiguityConstraint validates that the indexed children of every
// parent under an ordered relation type carry a dense 0..n-1 index with no
// gaps or duplicates. Unindexed children (drafts) are exempt.
type IndexContiguityConstraint struct {
	Type *relations.RelationType
}

// Name returns the constraint name
func (ic *IndexContiguityConstraint) Name() string {
	return fmt.Sprintf("IndexContiguityConstraint(%s)", ic.Type.Name)
}

// Validate groups relations by parent and checks each parent's index sequence
func (ic *IndexContiguityConstraint) Validate(ctx context.Context, reader RelationReader) ([]Violation, error) {
	if !ic.Type.Ordered {
		return nil, nil
	}

	rels, err := reader.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	indexes := make(map[uuid.UUID][]int)
	for _, rel := range rels {
		if rel.TypeID != ic.Type.ID || !rel.Indexed() {
			continue
		}
		indexes[rel.ParentID] = append(indexes[rel.ParentID], *rel.Index)
	}

	violations := make([]Violation, 0)
	for id, seq := range indexes {
		sort.Ints(seq)
		for want, got := range seq {
			if got == want {
				continue
			}
			parentID := id
			violations = append(violations, Violation{
				Type:       IndexGap,
				Severity:   Error,
				ParentID:   &parentID,
				Constraint: ic.Name(),
				Message: fmt.Sprintf("PID %s has non-contiguous %s indexes: expected %d, found %d",
					id, ic.Type.Name, want, got),
				Details: map[string]any{
					"relation_type": ic.Type.Name,
					"expected":      want,
					"found":         got,
				},
			})
			break
		}
	}

	return violations, nil
}
