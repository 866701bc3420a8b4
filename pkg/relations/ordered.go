package relations

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
)

// OrderedNode extends Node with sibling ordering. Indexed children keep a
// dense 0..n-1 index; unindexed children (drafts) trail the ordered ones and
// are ignored by the position queries.
type OrderedNode struct {
	Node
}

// NewOrderedNode creates an ordered node API for the given PID.
// The relation type must be declared as ordered.
func NewOrderedNode(store Store, pids pidstore.Store, pid *pidstore.PID, rtype *RelationType) (*OrderedNode, error) {
	if !rtype.Ordered {
		return nil, fmt.Errorf("%w: %q", ErrNotOrdered, rtype.Name)
	}
	return &OrderedNode{Node: Node{store: store, pids: pids, pid: pid, rtype: rtype}}, nil
}

// ChildIndex returns the index of a child in the relation
func (n *OrderedNode) ChildIndex(ctx context.Context, child *pidstore.PID) (int, error) {
	rel, err := n.store.GetRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
	if err != nil {
		return 0, err
	}
	if rel.Index == nil {
		return 0, fmt.Errorf("%w: %s", ErrUnindexedChild, child.Key())
	}
	return *rel.Index, nil
}

// LastChild returns the indexed child with the highest index, or nil if the
// node has no indexed children
func (n *OrderedNode) LastChild(ctx context.Context) (*pidstore.PID, error) {
	rels, err := n.ChildRelations(ctx)
	if err != nil {
		return nil, err
	}

	var last *Relation
	for _, rel := range rels {
		if rel.Index != nil {
			last = rel // relations arrive index-ascending
		}
	}
	if last == nil {
		return nil, nil
	}
	return n.pids.GetByID(ctx, last.ChildID)
}

// IsLastChild reports whether the given PID is the highest-indexed child
func (n *OrderedNode) IsLastChild(ctx context.Context, child *pidstore.PID) (bool, error) {
	last, err := n.LastChild(ctx)
	if err != nil {
		return false, err
	}
	return last != nil && last.ID == child.ID, nil
}

// NextChild returns the sibling after the given child, or nil at the end.
// Unindexed children have no position and yield ErrUnindexedChild.
func (n *OrderedNode) NextChild(ctx context.Context, child *pidstore.PID) (*pidstore.PID, error) {
	return n.sibling(ctx, child, +1)
}

// PreviousChild returns the sibling before the given child, or nil at the start
func (n *OrderedNode) PreviousChild(ctx context.Context, child *pidstore.PID) (*pidstore.PID, error) {
	return n.sibling(ctx, child, -1)
}

func (n *OrderedNode) sibling(ctx context.Context, child *pidstore.PID, direction int) (*pidstore.PID, error) {
	rel, err := n.store.GetRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
	if err != nil {
		return nil, err
	}
	if rel.Index == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnindexedChild, child.Key())
	}

	rels, err := n.ChildRelations(ctx)
	if err != nil {
		return nil, err
	}

	var best *Relation
	for _, sibling := range rels {
		if sibling.Index == nil {
			continue
		}
		if direction > 0 && *sibling.Index > *rel.Index {
			// first indexed relation past ours, in ascending order
			best = sibling
			break
		}
		if direction < 0 && *sibling.Index < *rel.Index {
			best = sibling // keep the highest index below ours
		}
	}
	if best == nil {
		return nil, nil
	}
	return n.pids.GetByID(ctx, best.ChildID)
}

// InsertChild appends a child at the end of the order.
// Equivalent to InsertChildAt with index -1.
func (n *OrderedNode) InsertChild(ctx context.Context, child *pidstore.PID) (*Relation, error) {
	return n.InsertChildAt(ctx, child, -1)
}

// InsertChildAt inserts a child at the given position and renumbers the
// indexed siblings to a dense 0..n-1 sequence. Index -1 appends. Unindexed
// siblings keep their nil index.
func (n *OrderedNode) InsertChildAt(ctx context.Context, child *pidstore.PID, index int) (*Relation, error) {
	if index < -1 {
		return nil, fmt.Errorf("index must be >= -1, got %d", index)
	}
	if err := n.guardInsert(ctx, child); err != nil {
		return nil, err
	}

	siblings, err := n.indexedChildren(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := n.store.CreateRelation(ctx, n.pid.ID, child.ID, n.rtype.ID, nil); err != nil {
		return nil, err
	}

	if index == -1 || index > len(siblings) {
		siblings = append(siblings, child.ID)
	} else {
		siblings = append(siblings[:index], append([]uuid.UUID{child.ID}, siblings[index:]...)...)
	}

	if err := n.renumber(ctx, siblings); err != nil {
		return nil, err
	}

	return n.store.GetRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
}

// RemoveChild removes a child. With reorder set, the remaining indexed
// siblings are renumbered to close the gap.
func (n *OrderedNode) RemoveChild(ctx context.Context, child *pidstore.PID, reorder bool) error {
	if err := n.Node.RemoveChild(ctx, child); err != nil {
		return err
	}
	if !reorder {
		return nil
	}

	siblings, err := n.indexedChildren(ctx)
	if err != nil {
		return err
	}
	return n.renumber(ctx, siblings)
}

// indexedChildren returns the ids of indexed children in sibling order
func (n *OrderedNode) indexedChildren(ctx context.Context) ([]uuid.UUID, error) {
	rels, err := n.ChildRelations(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rels))
	for _, rel := range rels {
		if rel.Index != nil {
			ids = append(ids, rel.ChildID)
		}
	}
	return ids, nil
}

// renumber assigns the dense 0..n-1 index over the given sibling order
func (n *OrderedNode) renumber(ctx context.Context, siblings []uuid.UUID) error {
	indexes := make(map[uuid.UUID]*int, len(siblings))
	for i, id := range siblings {
		idx := i
		indexes[id] = &idx
	}
	return n.store.SetIndexes(ctx, n.pid.ID, n.rtype.ID, indexes)
}

// MarkIndexed assigns the next free index to a previously unindexed child
// (e.g. when a draft is published)
func (n *OrderedNode) MarkIndexed(ctx context.Context, child *pidstore.PID) (*Relation, error) {
	rel, err := n.store.GetRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
	if err != nil {
		return nil, err
	}
	if rel.Index != nil {
		return rel, nil
	}

	siblings, err := n.indexedChildren(ctx)
	if err != nil {
		return nil, err
	}
	siblings = append(siblings, child.ID)
	if err := n.renumber(ctx, siblings); err != nil {
		return nil, err
	}

	return n.store.GetRelation(ctx, n.pid.ID, child.ID, n.rtype.ID)
}
