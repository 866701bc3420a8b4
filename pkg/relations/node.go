package relations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
)

// Node is the relation API around one central PID for one relation type.
// A node can have multiple parents and multiple children, within the limits
// declared on the relation type.
type Node struct {
	store Store
	pids  pidstore.Store
	pid   *pidstore.PID
	rtype *RelationType
}

// NewNode creates a node API for the given PID and relation type
func NewNode(store Store, pids pidstore.Store, pid *pidstore.PID, rtype *RelationType) *Node {
	return &Node{store: store, pids: pids, pid: pid, rtype: rtype}
}

// PID returns the central PID of the node
func (n *Node) PID() *pidstore.PID {
	return n.pid
}

// Type returns the node's relation type
func (n *Node) Type() *RelationType {
	return n.rtype
}

// ChildRelations lists the relations from this node to its children
func (n *Node) ChildRelations(ctx context.Context) ([]*Relation, error) {
	return n.store.ChildRelations(ctx, n.pid.ID, n.rtype.ID)
}

// ParentRelations lists the relations from this node's parents to it
func (n *Node) ParentRelations(ctx context.Context) ([]*Relation, error) {
	return n.store.ParentRelations(ctx, n.pid.ID, n.rtype.ID)
}

// Children resolves the child PIDs in sibling order
func (n *Node) Children(ctx context.Context) ([]*pidstore.PID, error) {
	rels, err := n.ChildRelations(ctx)
	if err != nil {
		return nil, err
	}
	return n.resolveAll(ctx, rels, func(r *Relation) uuid.UUID { return r.ChildID })
}

// Parents resolves the parent PIDs
func (n *Node) Parents(ctx context.Context) ([]*pidstore.PID, error) {
	rels, err := n.ParentRelations(ctx)
	if err != nil {
		return nil, err
	}
	return n.resolveAll(ctx, rels, func(r *Relation) uuid.UUID { return r.ParentID })
}

func (n *Node) resolveAll(ctx context.Context, rels []*Relation, pick func(*Relation) uuid.UUID) ([]*pidstore.PID, error) {
	result := make([]*pidstore.PID, 0, len(rels))
	for _, rel := range rels {
		pid, err := n.pids.GetByID(ctx, pick(rel))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve related pid: %w", err)
		}
		result = append(result, pid)
	}
	return result, nil
}

// IsParent reports whether the node has any children
func (n *Node) IsParent(ctx context.Context) (bool, error) {
	count, err := n.store.CountChildren(ctx, n.pid.ID, n.rtype.ID)
	return count > 0, err
}

// IsChild reports whether the node has any parents
func (n *Node) IsChild(ctx context.Context) (bool, error) {
	count, err := n.store.CountParents(ctx, n.pid.ID, n.rtype.ID)
	return count > 0, err
}

// InsertChild adds a child PID without ordering information.
// All consistency invariants are checked before the edge is written.
func (n *Node) InsertChild(ctx context.Context, child *pidstore.PID) (*Relation, error) {
	if err := n.guardInsert(ctx, child); err != nil {
		return nil, err
	}
	return n.store.CreateRelation(ctx, n.pid.ID, child.ID, n.rtype.ID, nil)
}

// RemoveChild removes the relation to a child PID
func (n *Node) RemoveChild(ctx context.Context, child *pidstore.PID) error {
	return n.store.DeleteRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
}

// guardInsert enforces the mutation invariants: no self-relations, no
// duplicates, cardinality limits, and acyclicity within the relation type.
func (n *Node) guardInsert(ctx context.Context, child *pidstore.PID) error {
	if child.ID == n.pid.ID {
		return fmt.Errorf("%w: %s", ErrSelfRelation, n.pid.Key())
	}

	exists, err := n.store.HasRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s -> %s", ErrRelationExists, n.pid.Key(), child.Key())
	}

	if n.rtype.MaxChildren > 0 {
		count, err := n.store.CountChildren(ctx, n.pid.ID, n.rtype.ID)
		if err != nil {
			return err
		}
		if count >= n.rtype.MaxChildren {
			return fmt.Errorf("%w: limit is %d", ErrMaxChildren, n.rtype.MaxChildren)
		}
	}

	if n.rtype.MaxParents > 0 {
		count, err := n.store.CountParents(ctx, child.ID, n.rtype.ID)
		if err != nil {
			return err
		}
		if count >= n.rtype.MaxParents {
			return fmt.Errorf("%w: %s already has %d parent(s)", ErrMaxParents, child.Key(), count)
		}
	}

	// The new edge parent -> child closes a cycle iff the parent is already
	// reachable from the child through edges of this type.
	reachable, err := n.reachable(ctx, child.ID, n.pid.ID)
	if err != nil {
		return err
	}
	if reachable {
		return fmt.Errorf("%w: %s is already reachable from %s", ErrCycle, n.pid.Key(), child.Key())
	}

	return nil
}

// reachable runs a breadth-first search over child edges of the node's
// relation type, from one PID to another
func (n *Node) reachable(ctx context.Context, from, to uuid.UUID) (bool, error) {
	visited := map[uuid.UUID]bool{from: true}
	queue := []uuid.UUID{from}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rels, err := n.store.ChildRelations(ctx, current, n.rtype.ID)
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
