package versioning

import (
	"context"
	"errors"
	"testing"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

type chainEnv struct {
	relations *relations.MemoryStore
	pids      *pidstore.MemoryStore
	registry  *relations.Registry
}

func newChainEnv() *chainEnv {
	return &chainEnv{
		relations: relations.NewMemoryStore(),
		pids:      pidstore.NewMemoryStore(),
		registry:  relations.DefaultRegistry(),
	}
}

func (e *chainEnv) registered(t *testing.T, value string) *pidstore.PID {
	t.Helper()
	ctx := context.Background()
	pid, err := e.pids.Create(ctx, "doi", value)
	if err != nil {
		t.Fatalf("failed to create pid: %v", err)
	}
	pid, err = e.pids.SetStatus(ctx, pid.ID, pidstore.StatusRegistered)
	if err != nil {
		t.Fatalf("failed to register pid: %v", err)
	}
	return pid
}

func (e *chainEnv) draft(t *testing.T, value string) *pidstore.PID {
	t.Helper()
	pid, err := e.pids.Create(context.Background(), "doi", value)
	if err != nil {
		t.Fatalf("failed to create pid: %v", err)
	}
	return pid
}

func (e *chainEnv) chain(t *testing.T, head *pidstore.PID) *Chain {
	t.Helper()
	chain, err := NewChain(e.relations, e.pids, head, e.registry)
	if err != nil {
		t.Fatalf("NewChain failed: %v", err)
	}
	return chain
}

func TestChainInsertVersionUpdatesRedirect(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	v1 := env.registered(t, "10.1234/v1")
	v2 := env.registered(t, "10.1234/v2")

	chain := env.chain(t, head)

	if _, err := chain.InsertVersion(ctx, v1, -1); err != nil {
		t.Fatalf("InsertVersion failed: %v", err)
	}
	resolved, err := chain.Resolve(ctx)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.ID != v1.ID {
		t.Errorf("expected head to resolve to v1, got %s", resolved.Key())
	}

	if _, err := chain.InsertVersion(ctx, v2, -1); err != nil {
		t.Fatalf("InsertVersion failed: %v", err)
	}
	resolved, _ = chain.Resolve(ctx)
	if resolved.ID != v2.ID {
		t.Errorf("expected head to resolve to v2, got %s", resolved.Key())
	}

	last, _ := chain.Last(ctx)
	if last == nil || last.ID != v2.ID {
		t.Errorf("expected v2 as last version")
	}
}

func TestChainInsertVersionRequiresRegistered(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	unregistered := env.draft(t, "10.1234/new")

	chain := env.chain(t, head)
	if _, err := chain.InsertVersion(ctx, unregistered, -1); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestChainDraftLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	v1 := env.registered(t, "10.1234/v1")
	draft := env.draft(t, "10.1234/v2-draft")

	chain := env.chain(t, head)
	chain.InsertVersion(ctx, v1, -1)

	// No draft yet
	got, err := chain.Draft(ctx)
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no draft, got %s", got.Key())
	}

	if _, err := chain.InsertDraft(ctx, draft); err != nil {
		t.Fatalf("InsertDraft failed: %v", err)
	}

	got, _ = chain.Draft(ctx)
	if got == nil || got.ID != draft.ID {
		t.Fatalf("expected draft %s, got %v", draft.Key(), got)
	}

	// Second draft is rejected
	other := env.draft(t, "10.1234/other-draft")
	if _, err := chain.InsertDraft(ctx, other); !errors.Is(err, ErrDraftExists) {
		t.Errorf("expected ErrDraftExists, got %v", err)
	}

	// A registered PID cannot enter as draft
	registered := env.registered(t, "10.1234/v3")
	chain2 := env.chain(t, env.registered(t, "10.1234/head2"))
	if _, err := chain2.InsertDraft(ctx, registered); !errors.Is(err, ErrNotDraftStatus) {
		t.Errorf("expected ErrNotDraftStatus, got %v", err)
	}

	// The draft does not participate in ordering or redirects
	resolved, _ := chain.Resolve(ctx)
	if resolved.ID != v1.ID {
		t.Errorf("expected head to still resolve to v1, got %s", resolved.Key())
	}

	// Publish: the draft becomes the latest registered version
	published, err := chain.PublishDraft(ctx)
	if err != nil {
		t.Fatalf("PublishDraft failed: %v", err)
	}
	if published.Status != pidstore.StatusRegistered {
		t.Errorf("expected published status REGISTERED, got %s", published.Status)
	}

	resolved, _ = chain.Resolve(ctx)
	if resolved.ID != draft.ID {
		t.Errorf("expected head to resolve to the published draft, got %s", resolved.Key())
	}

	last, _ := chain.Last(ctx)
	if last.ID != draft.ID {
		t.Errorf("expected published draft as last version")
	}

	// Publishing again fails: there is no draft anymore
	if _, err := chain.PublishDraft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}
}

func TestChainRemoveDraft(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	chain := env.chain(t, head)

	if err := chain.RemoveDraft(ctx); !errors.Is(err, ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got %v", err)
	}

	draft := env.draft(t, "10.1234/draft")
	chain.InsertDraft(ctx, draft)

	if err := chain.RemoveDraft(ctx); err != nil {
		t.Fatalf("RemoveDraft failed: %v", err)
	}
	got, _ := chain.Draft(ctx)
	if got != nil {
		t.Errorf("expected draft removed, got %s", got.Key())
	}
}

func TestChainRemoveVersion(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	v1 := env.registered(t, "10.1234/v1")
	v2 := env.registered(t, "10.1234/v2")

	chain := env.chain(t, head)
	chain.InsertVersion(ctx, v1, -1)
	chain.InsertVersion(ctx, v2, -1)

	// Removing the latest version retargets the redirect to its predecessor
	if err := chain.RemoveVersion(ctx, v2); err != nil {
		t.Fatalf("RemoveVersion failed: %v", err)
	}
	resolved, _ := chain.Resolve(ctx)
	if resolved.ID != v1.ID {
		t.Errorf("expected head to resolve to v1, got %s", resolved.Key())
	}

	// Removing the only version leaves the head redirect in place
	if err := chain.RemoveVersion(ctx, v1); err != nil {
		t.Fatalf("RemoveVersion failed: %v", err)
	}
	versions, _ := chain.Versions(ctx)
	if len(versions) != 0 {
		t.Errorf("expected empty chain, got %d versions", len(versions))
	}
}

func TestChainUpdateRedirectSkipsUnregistered(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	v1 := env.registered(t, "10.1234/v1")
	v2 := env.registered(t, "10.1234/v2")

	chain := env.chain(t, head)
	chain.InsertVersion(ctx, v1, -1)
	chain.InsertVersion(ctx, v2, -1)

	// Tombstone the latest version, then retarget
	if _, err := env.pids.SetStatus(ctx, v2.ID, pidstore.StatusDeleted); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := chain.UpdateRedirect(ctx); err != nil {
		t.Fatalf("UpdateRedirect failed: %v", err)
	}

	resolved, _ := chain.Resolve(ctx)
	if resolved.ID != v1.ID {
		t.Errorf("expected redirect to skip the deleted version, got %s", resolved.Key())
	}
}

func TestChainUpdateRedirectNoVersions(t *testing.T) {
	ctx := context.Background()
	env := newChainEnv()

	head := env.registered(t, "10.1234/head")
	chain := env.chain(t, head)

	if err := chain.UpdateRedirect(ctx); !errors.Is(err, ErrNoVersions) {
		t.Errorf("expected ErrNoVersions, got %v", err)
	}
}
