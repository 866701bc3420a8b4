package query

import (
	"context"
	"testing"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// buildTree creates: root -> (a, b); a -> (c); c -> (d)
func buildTree(t *testing.T, env *queryEnv) (root, a, b, c, d *pidstore.PID) {
	t.Helper()
	root = env.pid(t, "root", pidstore.StatusRegistered)
	a = env.pid(t, "a", pidstore.StatusRegistered)
	b = env.pid(t, "b", pidstore.StatusRegistered)
	c = env.pid(t, "c", pidstore.StatusRegistered)
	d = env.pid(t, "d", pidstore.StatusRegistered)

	env.relate(t, root, a, intptr(0))
	env.relate(t, root, b, intptr(1))
	env.relate(t, a, c, intptr(0))
	env.relate(t, c, d, intptr(0))
	return
}

func TestTraverserDescendants(t *testing.T) {
	ctx := context.Background()
	env := newQueryEnv()
	root, a, b, c, d := buildTree(t, env)

	traverser := NewTraverser(env.relations, env.pids)

	results, err := traverser.Descendants(ctx, root.ID, relations.TypeVersion, 0)
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected 4 descendants, got %d", len(results))
	}

	// Breadth-first: a and b at depth 1, then c, then d
	if results[0].PID.ID != a.ID || results[0].Depth != 1 {
		t.Errorf("expected a at depth 1 first, got %s at %d", results[0].PID.Value, results[0].Depth)
	}
	if results[1].PID.ID != b.ID {
		t.Errorf("expected b second, got %s", results[1].PID.Value)
	}
	if results[2].PID.ID != c.ID || results[2].Depth != 2 {
		t.Errorf("expected c at depth 2, got %s at %d", results[2].PID.Value, results[2].Depth)
	}
	if results[3].PID.ID != d.ID || results[3].Depth != 3 {
		t.Errorf("expected d at depth 3, got %s at %d", results[3].PID.Value, results[3].Depth)
	}
}

func TestTraverserDepthLimit(t *testing.T) {
	ctx := context.Background()
	env := newQueryEnv()
	root, _, _, _, _ := buildTree(t, env)

	traverser := NewTraverser(env.relations, env.pids)

	results, err := traverser.Descendants(ctx, root.ID, relations.TypeVersion, 2)
	if err != nil {
		t.Fatalf("Descendants failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 descendants within depth 2, got %d", len(results))
	}
}

func TestTraverserAncestors(t *testing.T) {
	ctx := context.Background()
	env := newQueryEnv()
	root, a, _, c, d := buildTree(t, env)

	traverser := NewTraverser(env.relations, env.pids)

	results, err := traverser.Ancestors(ctx, d.ID, relations.TypeVersion, 0)
	if err != nil {
		t.Fatalf("Ancestors failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(results))
	}
	if results[0].PID.ID != c.ID || results[1].PID.ID != a.ID || results[2].PID.ID != root.ID {
		t.Error("expected ancestor chain c, a, root")
	}
}

func TestTraverserHasPath(t *testing.T) {
	ctx := context.Background()
	env := newQueryEnv()
	root, a, b, _, d := buildTree(t, env)

	traverser := NewTraverser(env.relations, env.pids)

	tests := []struct {
		name     string
		from     *pidstore.PID
		to       *pidstore.PID
		expected bool
	}{
		{"root reaches d", root, d, true},
		{"a reaches d", a, d, true},
		{"b does not reach d", b, d, false},
		{"no upward path", d, root, false},
		{"self is reachable", a, a, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := traverser.HasPath(ctx, tt.from.ID, tt.to.ID, relations.TypeVersion)
			if err != nil {
				t.Fatalf("HasPath failed: %v", err)
			}
			if got != tt.expected {
				t.Errorf("HasPath(%s, %s) = %v, want %v", tt.from.Value, tt.to.Value, got, tt.expected)
			}
		})
	}
}
