package constraints

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// fakeReader serves a fixed relation slice, including states the real stores
// refuse to write (duplicates, gaps, cycles)
type fakeReader struct {
	rels []*relations.Relation
}

func (f *fakeReader) AllRelations(_ context.Context) ([]*relations.Relation, error) {
	return f.rels, nil
}

func (f *fakeReader) ChildRelations(_ context.Context, parentID uuid.UUID, typeID int) ([]*relations.Relation, error) {
	out := make([]*relations.Relation, 0)
	for _, rel := range f.rels {
		if rel.ParentID == parentID && rel.TypeID == typeID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (f *fakeReader) ParentRelations(_ context.Context, childID uuid.UUID, typeID int) ([]*relations.Relation, error) {
	out := make([]*relations.Relation, 0)
	for _, rel := range f.rels {
		if rel.ChildID == childID && rel.TypeID == typeID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func rel(parent, child uuid.UUID, typeID int, index *int) *relations.Relation {
	return &relations.Relation{
		ParentID:  parent,
		ChildID:   child,
		TypeID:    typeID,
		Index:     index,
		CreatedAt: time.Now(),
	}
}

func idx(i int) *int { return &i }

func versionType(t *testing.T) *relations.RelationType {
	t.Helper()
	rt, err := relations.DefaultRegistry().Get(relations.TypeVersion)
	if err != nil {
		t.Fatalf("failed to get version type: %v", err)
	}
	return rt
}

func TestCardinalityConstraint(t *testing.T) {
	ctx := context.Background()
	rt := versionType(t) // MaxParents: 1

	head1 := uuid.New()
	head2 := uuid.New()
	child := uuid.New()

	reader := &fakeReader{rels: []*relations.Relation{
		rel(head1, child, relations.TypeVersion, idx(0)),
		rel(head2, child, relations.TypeVersion, idx(0)),
	}}

	cc := &CardinalityConstraint{Type: rt}
	violations, err := cc.Validate(ctx, reader)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	v := violations[0]
	if v.Type != CardinalityViolation || v.Severity != Error {
		t.Errorf("unexpected violation: %+v", v)
	}
	if v.ChildID == nil || *v.ChildID != child {
		t.Errorf("expected violation to name the over-parented child")
	}
}

func TestCardinalityConstraintMaxChildren(t *testing.T) {
	ctx := context.Background()
	rt := &relations.RelationType{ID: 7, Name: "supplement", MaxChildren: 1}

	parent := uuid.New()
	reader := &fakeReader{rels: []*relations.Relation{
		rel(parent, uuid.New(), 7, nil),
		rel(parent, uuid.New(), 7, nil),
	}}

	violations, err := (&CardinalityConstraint{Type: rt}).Validate(ctx, reader)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if violations[0].ParentID == nil || *violations[0].ParentID != parent {
		t.Errorf("expected violation to name the over-loaded parent")
	}
}

func TestUniquenessConstraint(t *testing.T) {
	ctx := context.Background()
	parent := uuid.New()
	child := uuid.New()

	duplicated := []*relations.Relation{
		rel(parent, child, relations.TypeVersion, idx(0)),
		rel(parent, child, relations.TypeVersion, idx(1)),
		rel(parent, uuid.New(), relations.TypeVersion, idx(2)),
	}

	violations, err := (&UniquenessConstraint{}).Validate(ctx, &fakeReader{rels: duplicated})
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(violations))
	}
	if violations[0].Type != DuplicateRelation {
		t.Errorf("expected DuplicateRelation, got %s", violations[0].Type)
	}
	if got := violations[0].Details["occurrences"]; got != 2 {
		t.Errorf("expected 2 occurrences, got %v", got)
	}
}

func TestAcyclicityConstraint(t *testing.T) {
	ctx := context.Background()
	rt := versionType(t)

	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	tests := []struct {
		name       string
		rels       []*relations.Relation
		violations int
	}{
		{
			name: "chain is acyclic",
			rels: []*relations.Relation{
				rel(a, b, relations.TypeVersion, idx(0)),
				rel(b, c, relations.TypeVersion, idx(0)),
			},
			violations: 0,
		},
		{
			name: "three node cycle",
			rels: []*relations.Relation{
				rel(a, b, relations.TypeVersion, idx(0)),
				rel(b, c, relations.TypeVersion, idx(0)),
				rel(c, a, relations.TypeVersion, idx(0)),
			},
			violations: 1,
		},
		{
			name: "self loop",
			rels: []*relations.Relation{
				rel(a, a, relations.TypeVersion, idx(0)),
			},
			violations: 1,
		},
		{
			name: "cycle in another type is ignored",
			rels: []*relations.Relation{
				rel(a, b, relations.TypePartOf, nil),
				rel(b, a, relations.TypePartOf, nil),
			},
			violations: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations, err := (&AcyclicityConstraint{Type: rt}).Validate(ctx, &fakeReader{rels: tt.rels})
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(violations) != tt.violations {
				t.Errorf("expected %d violations, got %d", tt.violations, len(violations))
			}
		})
	}
}

func TestIndexContiguityConstraint(t *testing.T) {
	ctx := context.Background()
	rt := versionType(t)
	parent := uuid.New()

	tests := []struct {
		name       string
		indexes    []*int
		violations int
	}{
		{"dense", []*int{idx(0), idx(1), idx(2)}, 0},
		{"gap", []*int{idx(0), idx(2)}, 1},
		{"duplicate index", []*int{idx(0), idx(0), idx(1)}, 1},
		{"does not start at zero", []*int{idx(1), idx(2)}, 1},
		{"drafts are exempt", []*int{idx(0), nil}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rels := make([]*relations.Relation, 0, len(tt.indexes))
			for _, index := range tt.indexes {
				rels = append(rels, rel(parent, uuid.New(), relations.TypeVersion, index))
			}
			violations, err := (&IndexContiguityConstraint{Type: rt}).Validate(ctx, &fakeReader{rels: rels})
			if err != nil {
				t.Fatalf("Validate failed: %v", err)
			}
			if len(violations) != tt.violations {
				t.Errorf("expected %d violations, got %d", tt.violations, len(violations))
			}
		})
	}
}

func TestRedirectConstraint(t *testing.T) {
	ctx := context.Background()
	rt := versionType(t)
	pids := pidstore.NewMemoryStore()

	mk := func(t *testing.T, value string, status pidstore.Status) *pidstore.PID {
		t.Helper()
		pid, err := pids.Create(ctx, "recid", value)
		if err != nil {
			t.Fatalf("failed to create pid: %v", err)
		}
		if status != pidstore.StatusNew {
			pid, err = pids.SetStatus(ctx, pid.ID, status)
			if err != nil {
				t.Fatalf("failed to set status: %v", err)
			}
		}
		return pid
	}

	head := mk(t, "head", pidstore.StatusRegistered)
	v0 := mk(t, "v0", pidstore.StatusRegistered)
	v1 := mk(t, "v1", pidstore.StatusRegistered)

	reader := &fakeReader{rels: []*relations.Relation{
		rel(head.ID, v0.ID, relations.TypeVersion, idx(0)),
		rel(head.ID, v1.ID, relations.TypeVersion, idx(1)),
	}}
	rc := &RedirectConstraint{Type: rt, PIDs: pids}

	// Head with registered children but no redirect: warning
	violations, err := rc.Validate(ctx, reader)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Severity != Warning {
		t.Fatalf("expected one warning, got %+v", violations)
	}

	// Redirect to the wrong child: error
	if _, err := pids.Redirect(ctx, head.ID, v0.ID); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}
	violations, _ = rc.Validate(ctx, reader)
	if len(violations) != 1 || violations[0].Severity != Error {
		t.Fatalf("expected one error, got %+v", violations)
	}

	// Redirect to the newest registered child: clean
	if _, err := pids.Redirect(ctx, head.ID, v1.ID); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}
	violations, _ = rc.Validate(ctx, reader)
	if len(violations) != 0 {
		t.Errorf("expected no violations, got %+v", violations)
	}

	// A deleted newest version moves the expected target back
	if _, err := pids.SetStatus(ctx, v1.ID, pidstore.StatusDeleted); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	violations, _ = rc.Validate(ctx, reader)
	if len(violations) != 1 {
		t.Fatalf("expected one violation after deleting newest version, got %d", len(violations))
	}
	if violations[0].ChildID == nil || *violations[0].ChildID != v0.ID {
		t.Errorf("expected v0 as the new redirect target")
	}
}

func TestValidatorAggregates(t *testing.T) {
	ctx := context.Background()
	registry := relations.DefaultRegistry()
	pids := pidstore.NewMemoryStore()

	a := uuid.New()
	b := uuid.New()

	reader := &fakeReader{rels: []*relations.Relation{
		rel(a, b, relations.TypeVersion, idx(0)),
		rel(b, a, relations.TypeVersion, idx(1)),
		rel(a, b, relations.TypeVersion, idx(3)),
	}}

	validator := NewRegistryValidator(registry, pids)
	result, err := validator.Validate(ctx, reader)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Valid {
		t.Error("expected invalid result")
	}
	if len(result.GetViolationsByType(CycleDetected)) == 0 {
		t.Error("expected a cycle violation")
	}
	if len(result.GetViolationsByType(DuplicateRelation)) == 0 {
		t.Error("expected a duplicate violation")
	}
	if len(result.GetViolationsBySeverity(Error)) == 0 {
		t.Error("expected error-severity violations")
	}
}

func TestValidatorCleanGraph(t *testing.T) {
	ctx := context.Background()
	registry := relations.DefaultRegistry()
	store := relations.NewMemoryStore()
	pids := pidstore.NewMemoryStore()

	head, err := pids.Create(ctx, "recid", "head")
	if err != nil {
		t.Fatalf("failed to create pid: %v", err)
	}
	if _, err := pids.SetStatus(ctx, head.ID, pidstore.StatusRegistered); err != nil {
		t.Fatalf("failed to register pid: %v", err)
	}
	v0, err := pids.Create(ctx, "recid", "v0")
	if err != nil {
		t.Fatalf("failed to create pid: %v", err)
	}
	if _, err := pids.SetStatus(ctx, v0.ID, pidstore.StatusRegistered); err != nil {
		t.Fatalf("failed to register pid: %v", err)
	}
	if _, err := store.CreateRelation(ctx, head.ID, v0.ID, relations.TypeVersion, idx(0)); err != nil {
		t.Fatalf("failed to create relation: %v", err)
	}
	if _, err := pids.Redirect(ctx, head.ID, v0.ID); err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}

	result, err := NewRegistryValidator(registry, pids).Validate(ctx, store)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected clean graph, got %+v", result.Violations)
	}
}
