package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// Traverser walks the relation graph transitively
type Traverser struct {
	store relations.Store
	pids  pidstore.Store
}

// NewTraverser creates a traverser over the given stores
func NewTraverser(store relations.Store, pids pidstore.Store) *Traverser {
	return &Traverser{store: store, pids: pids}
}

// TraversalResult is one visited PID with its distance from the root
type TraversalResult struct {
	PID   *pidstore.PID `json:"pid"`
	Depth int           `json:"depth"`
}

// Descendants returns all PIDs reachable from root through child edges of
// one relation type, in breadth-first order. maxDepth 0 means unlimited.
// The root itself is not included.
func (t *Traverser) Descendants(ctx context.Context, root uuid.UUID, typeID, maxDepth int) ([]TraversalResult, error) {
	return t.walk(ctx, root, typeID, maxDepth, true)
}

// Ancestors returns all PIDs that reach root through child edges of one
// relation type, in breadth-first order
func (t *Traverser) Ancestors(ctx context.Context, root uuid.UUID, typeID, maxDepth int) ([]TraversalResult, error) {
	return t.walk(ctx, root, typeID, maxDepth, false)
}

func (t *Traverser) walk(ctx context.Context, root uuid.UUID, typeID, maxDepth int, down bool) ([]TraversalResult, error) {
	type frame struct {
		id    uuid.UUID
		depth int
	}

	visited := map[uuid.UUID]bool{root: true}
	queue := []frame{{root, 0}}
	results := make([]TraversalResult, 0)

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if maxDepth > 0 && current.depth >= maxDepth {
			continue
		}

		var rels []*relations.Relation
		var err error
		if down {
			rels, err = t.store.ChildRelations(ctx, current.id, typeID)
		} else {
			rels, err = t.store.ParentRelations(ctx, current.id, typeID)
		}
		if err != nil {
			return nil, err
		}

		for _, rel := range rels {
			next := rel.ChildID
			if !down {
				next = rel.ParentID
			}
			if visited[next] {
				continue
			}
			visited[next] = true

			pid, err := t.pids.GetByID(ctx, next)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve pid during traversal: %w", err)
			}
			results = append(results, TraversalResult{PID: pid, Depth: current.depth + 1})
			queue = append(queue, frame{next, current.depth + 1})
		}
	}

	return results, nil
}

// HasPath reports whether to is reachable from from through child edges of
// one relation type
func (t *Traverser) HasPath(ctx context.Context, from, to uuid.UUID, typeID int) (bool, error) {
	if from == to {
		return true, nil
	}

	visited := map[uuid.UUID]bool{from: true}
	queue := []uuid.UUID{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rels, err := t.store.ChildRelations(ctx, current, typeID)
		if err != nil {
			return false, err
		}
		for _, rel := range rels {
			if rel.ChildID == to {
				return true, nil
			}
			if !visited[rel.ChildID] {
				visited[rel.ChildID] = true
				queue = append(queue, rel.ChildID)
			}
		}
	}
	return false, nil
}
