package relations

import (
	"context"
	"errors"
	"testing"

	"github.com/pidstack/pidrelations/pkg/pidstore"
)

func (e *testEnv) orderedNode(t *testing.T, pid *pidstore.PID) *OrderedNode {
	t.Helper()
	rtype, err := e.registry.Get(TypeVersion)
	if err != nil {
		t.Fatalf("unknown relation type: %v", err)
	}
	node, err := NewOrderedNode(e.relations, e.pids, pid, rtype)
	if err != nil {
		t.Fatalf("NewOrderedNode failed: %v", err)
	}
	return node
}

func TestNewOrderedNodeRequiresOrderedType(t *testing.T) {
	env := newTestEnv()
	pid := env.mustPID(t, "head")

	partOf, _ := env.registry.Get(TypePartOf)
	if _, err := NewOrderedNode(env.relations, env.pids, pid, partOf); !errors.Is(err, ErrNotOrdered) {
		t.Errorf("expected ErrNotOrdered, got %v", err)
	}
}

func TestOrderedNodeAppend(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	head := env.mustPID(t, "head")
	v1 := env.mustPID(t, "v1")
	v2 := env.mustPID(t, "v2")
	v3 := env.mustPID(t, "v3")

	node := env.orderedNode(t, head)
	for _, child := range []*pidstore.PID{v1, v2, v3} {
		if _, err := node.InsertChild(ctx, child); err != nil {
			t.Fatalf("InsertChild failed: %v", err)
		}
	}

	for i, child := range []*pidstore.PID{v1, v2, v3} {
		idx, err := node.ChildIndex(ctx, child)
		if err != nil {
			t.Fatalf("ChildIndex failed: %v", err)
		}
		if idx != i {
			t.Errorf("expected index %d for %s, got %d", i, child.Value, idx)
		}
	}

	last, err := node.LastChild(ctx)
	if err != nil {
		t.Fatalf("LastChild failed: %v", err)
	}
	if last == nil || last.ID != v3.ID {
		t.Errorf("expected v3 as last child, got %v", last)
	}

	isLast, _ := node.IsLastChild(ctx, v3)
	if !isLast {
		t.Error("expected v3 to be the last child")
	}
	isLast, _ = node.IsLastChild(ctx, v1)
	if isLast {
		t.Error("expected v1 not to be the last child")
	}
}

func TestOrderedNodeInsertAt(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	head := env.mustPID(t, "head")
	v1 := env.mustPID(t, "v1")
	v2 := env.mustPID(t, "v2")
	inserted := env.mustPID(t, "inserted")

	node := env.orderedNode(t, head)
	node.InsertChild(ctx, v1)
	node.InsertChild(ctx, v2)

	rel, err := node.InsertChildAt(ctx, inserted, 1)
	if err != nil {
		t.Fatalf("InsertChildAt failed: %v", err)
	}
	if rel.Index == nil || *rel.Index != 1 {
		t.Fatalf("expected index 1, got %v", rel.Index)
	}

	// Siblings renumbered to a dense sequence: v1=0, inserted=1, v2=2
	idx, _ := node.ChildIndex(ctx, v1)
	if idx != 0 {
		t.Errorf("expected v1 at 0, got %d", idx)
	}
	idx, _ = node.ChildIndex(ctx, v2)
	if idx != 2 {
		t.Errorf("expected v2 at 2, got %d", idx)
	}

	// An out-of-range position clamps to append
	tail := env.mustPID(t, "tail")
	rel, err = node.InsertChildAt(ctx, tail, 99)
	if err != nil {
		t.Fatalf("InsertChildAt failed: %v", err)
	}
	if *rel.Index != 3 {
		t.Errorf("expected appended index 3, got %d", *rel.Index)
	}

	if _, err := node.InsertChildAt(ctx, env.mustPID(t, "bad"), -2); err == nil {
		t.Error("expected error for index < -1")
	}
}

func TestOrderedNodeSiblings(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	head := env.mustPID(t, "head")
	v1 := env.mustPID(t, "v1")
	v2 := env.mustPID(t, "v2")
	v3 := env.mustPID(t, "v3")

	node := env.orderedNode(t, head)
	node.InsertChild(ctx, v1)
	node.InsertChild(ctx, v2)
	node.InsertChild(ctx, v3)

	next, err := node.NextChild(ctx, v1)
	if err != nil {
		t.Fatalf("NextChild failed: %v", err)
	}
	if next == nil || next.ID != v2.ID {
		t.Errorf("expected v2 after v1, got %v", next)
	}

	next, _ = node.NextChild(ctx, v3)
	if next != nil {
		t.Errorf("expected nil after the last child, got %v", next)
	}

	prev, _ := node.PreviousChild(ctx, v2)
	if prev == nil || prev.ID != v1.ID {
		t.Errorf("expected v1 before v2, got %v", prev)
	}

	prev, _ = node.PreviousChild(ctx, v1)
	if prev != nil {
		t.Errorf("expected nil before the first child, got %v", prev)
	}
}

func TestOrderedNodeUnindexedChildren(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	head := env.mustPID(t, "head")
	v1 := env.mustPID(t, "v1")
	draft := env.mustPID(t, "draft")

	node := env.orderedNode(t, head)
	node.InsertChild(ctx, v1)

	// A draft enters through the plain node API, unindexed
	if _, err := node.Node.InsertChild(ctx, draft); err != nil {
		t.Fatalf("unindexed insert failed: %v", err)
	}

	// Position queries reject unindexed children
	if _, err := node.ChildIndex(ctx, draft); !errors.Is(err, ErrUnindexedChild) {
		t.Errorf("expected ErrUnindexedChild, got %v", err)
	}
	if _, err := node.NextChild(ctx, draft); !errors.Is(err, ErrUnindexedChild) {
		t.Errorf("expected ErrUnindexedChild, got %v", err)
	}

	// LastChild ignores the draft
	last, _ := node.LastChild(ctx)
	if last == nil || last.ID != v1.ID {
		t.Errorf("expected v1 as last child, got %v", last)
	}

	// Publishing assigns the next free index
	rel, err := node.MarkIndexed(ctx, draft)
	if err != nil {
		t.Fatalf("MarkIndexed failed: %v", err)
	}
	if rel.Index == nil || *rel.Index != 1 {
		t.Errorf("expected index 1, got %v", rel.Index)
	}

	// MarkIndexed is idempotent
	again, _ := node.MarkIndexed(ctx, draft)
	if *again.Index != 1 {
		t.Errorf("expected stable index 1, got %d", *again.Index)
	}
}

func TestOrderedNodeRemoveChild(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	head := env.mustPID(t, "head")
	v1 := env.mustPID(t, "v1")
	v2 := env.mustPID(t, "v2")
	v3 := env.mustPID(t, "v3")

	node := env.orderedNode(t, head)
	node.InsertChild(ctx, v1)
	node.InsertChild(ctx, v2)
	node.InsertChild(ctx, v3)

	// Without reorder, a gap remains
	if err := node.RemoveChild(ctx, v2, false); err != nil {
		t.Fatalf("RemoveChild failed: %v", err)
	}
	idx, _ := node.ChildIndex(ctx, v3)
	if idx != 2 {
		t.Errorf("expected v3 to keep index 2, got %d", idx)
	}

	// With reorder, siblings are renumbered densely
	node.InsertChild(ctx, v2) // re-append at the end
	if err := node.RemoveChild(ctx, v1, true); err != nil {
		t.Fatalf("RemoveChild failed: %v", err)
	}
	idx, _ = node.ChildIndex(ctx, v3)
	if idx != 0 {
		t.Errorf("expected v3 at 0 after reorder, got %d", idx)
	}
	idx, _ = node.ChildIndex(ctx, v2)
	if idx != 1 {
		t.Errorf("expected v2 at 1 after reorder, got %d", idx)
	}

	last, _ := node.LastChild(ctx)
	if last == nil || last.ID != v2.ID {
		t.Errorf("expected v2 as last child, got %v", last)
	}
}
