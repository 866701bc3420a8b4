package constraints

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// RedirectConstraint validates that every head of an ordered chain redirects
// to its newest registered child. Heads whose redirect points elsewhere are
// errors; heads with registered children but no redirect at all are warnings,
// since a chain may legitimately be mid-publish.
type RedirectConstraint struct {
	Type *relations.RelationType
	PIDs PIDReader
}

// Name returns the constraint name
func (rc *RedirectConstraint) Name() string {
	return fmt.Sprintf("RedirectConstraint(%s)", rc.Type.Name)
}

// Validate recomputes the expected redirect target for every parent and
// compares it against the head PID's stored redirect
func (rc *RedirectConstraint) Validate(ctx context.Context, reader RelationReader) ([]Violation, error) {
	rels, err := reader.AllRelations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}

	byParent := make(map[uuid.UUID][]*relations.Relation)
	for _, rel := range rels {
		if rel.TypeID != rc.Type.ID || !rel.Indexed() {
			continue
		}
		byParent[rel.ParentID] = append(byParent[rel.ParentID], rel)
	}

	violations := make([]Violation, 0)
	for parentID, siblings := range byParent {
		want, dangling, err := rc.lastRegistered(ctx, siblings)
		if err != nil {
			return nil, err
		}
		violations = append(violations, dangling...)
		if want == uuid.Nil {
			continue
		}

		head, err := rc.PIDs.GetByID(ctx, parentID)
		if errors.Is(err, pidstore.ErrPIDNotFound) {
			id := parentID
			violations = append(violations, Violation{
				Type:       DanglingPID,
				Severity:   Error,
				ParentID:   &id,
				Constraint: rc.Name(),
				Message:    fmt.Sprintf("head %s has %s relations but no PID record", parentID, rc.Type.Name),
				Details:    map[string]any{"relation_type": rc.Type.Name},
			})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve head %s: %w", parentID, err)
		}

		id := parentID
		target := want
		switch {
		case head.Status != pidstore.StatusRedirected || head.RedirectTo == nil:
			violations = append(violations, Violation{
				Type:       StaleRedirect,
				Severity:   Warning,
				ParentID:   &id,
				ChildID:    &target,
				Constraint: rc.Name(),
				Message: fmt.Sprintf("head %s has registered %s children but is not redirected",
					head.Key(), rc.Type.Name),
				Details: map[string]any{
					"relation_type": rc.Type.Name,
					"head_status":   string(head.Status),
					"expected":      want.String(),
				},
			})
		case *head.RedirectTo != want:
			violations = append(violations, Violation{
				Type:       StaleRedirect,
				Severity:   Error,
				ParentID:   &id,
				ChildID:    &target,
				Constraint: rc.Name(),
				Message: fmt.Sprintf("head %s redirects to %s, expected newest registered child %s",
					head.Key(), *head.RedirectTo, want),
				Details: map[string]any{
					"relation_type": rc.Type.Name,
					"found":         head.RedirectTo.String(),
					"expected":      want.String(),
				},
			})
		}
	}

	return violations, nil
}

// lastRegistered returns the highest-indexed registered child, or uuid.Nil
// when no child is registered. Children without a PID record come back as
// dangling violations instead of failing the scan.
func (rc *RedirectConstraint) lastRegistered(ctx context.Context, siblings []*relations.Relation) (uuid.UUID, []Violation, error) {
	best := uuid.Nil
	bestIdx := -1
	dangling := make([]Violation, 0)
	for _, rel := range siblings {
		pid, err := rc.PIDs.GetByID(ctx, rel.ChildID)
		if errors.Is(err, pidstore.ErrPIDNotFound) {
			parentID, childID := rel.ParentID, rel.ChildID
			dangling = append(dangling, Violation{
				Type:       DanglingPID,
				Severity:   Error,
				ParentID:   &parentID,
				ChildID:    &childID,
				Constraint: rc.Name(),
				Message:    fmt.Sprintf("child %s has a %s relation but no PID record", rel.ChildID, rc.Type.Name),
				Details:    map[string]any{"relation_type": rc.Type.Name},
			})
			continue
		}
		if err != nil {
			return uuid.Nil, nil, fmt.Errorf("failed to resolve child %s: %w", rel.ChildID, err)
		}
		if pid.Status == pidstore.StatusRegistered && *rel.Index > bestIdx {
			best = rel.ChildID
			bestIdx = *rel.Index
		}
	}
	return best, dangling, nil
}
