package pidstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pid, err := store.Create(ctx, "doi", "10.1234/foo")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if pid.Status != StatusNew {
		t.Errorf("expected status NEW, got %s", pid.Status)
	}
	if pid.ID == uuid.Nil {
		t.Error("expected non-nil object id")
	}

	got, err := store.Get(ctx, "doi", "10.1234/foo")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ID != pid.ID {
		t.Errorf("expected id %s, got %s", pid.ID, got.ID)
	}

	byID, err := store.GetByID(ctx, pid.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if byID.Key() != "doi:10.1234/foo" {
		t.Errorf("unexpected key %s", byID.Key())
	}
}

func TestMemoryStoreDuplicateKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Create(ctx, "doi", "10.1234/foo"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	_, err := store.Create(ctx, "doi", "10.1234/foo")
	if !errors.Is(err, ErrPIDExists) {
		t.Errorf("expected ErrPIDExists, got %v", err)
	}
}

func TestMemoryStoreEmptyKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.Create(ctx, "", "value"); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if _, err := store.Create(ctx, "doi", ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
}

func TestMemoryStoreStatusTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pid, _ := store.Create(ctx, "recid", "1")

	// NEW -> REGISTERED is allowed
	updated, err := store.SetStatus(ctx, pid.ID, StatusRegistered)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if updated.Status != StatusRegistered {
		t.Errorf("expected REGISTERED, got %s", updated.Status)
	}

	// REGISTERED -> NEW is rejected
	if _, err := store.SetStatus(ctx, pid.ID, StatusNew); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	// DELETED is terminal
	if _, err := store.SetStatus(ctx, pid.ID, StatusDeleted); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.SetStatus(ctx, pid.ID, StatusRegistered); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition after delete, got %v", err)
	}
}

func TestMemoryStoreRedirect(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	head, _ := store.Create(ctx, "doi", "10.1234/head")
	v1, _ := store.Create(ctx, "doi", "10.1234/v1")
	v2, _ := store.Create(ctx, "doi", "10.1234/v2")

	store.SetStatus(ctx, head.ID, StatusRegistered)
	store.SetStatus(ctx, v1.ID, StatusRegistered)

	// Redirect to an unregistered target is rejected
	if _, err := store.Redirect(ctx, head.ID, v2.ID); !errors.Is(err, ErrRedirectTarget) {
		t.Errorf("expected ErrRedirectTarget, got %v", err)
	}

	// Redirect to a registered target works
	redirected, err := store.Redirect(ctx, head.ID, v1.ID)
	if err != nil {
		t.Fatalf("Redirect failed: %v", err)
	}
	if redirected.Status != StatusRedirected {
		t.Errorf("expected REDIRECTED, got %s", redirected.Status)
	}

	// Resolve follows the redirect
	resolved, err := store.Resolve(ctx, "doi", "10.1234/head")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.ID != v1.ID {
		t.Errorf("expected resolution to v1, got %s", resolved.Key())
	}

	// Retargeting an existing redirect works
	store.SetStatus(ctx, v2.ID, StatusRegistered)
	if _, err := store.Redirect(ctx, head.ID, v2.ID); err != nil {
		t.Fatalf("retarget failed: %v", err)
	}
	resolved, _ = store.Resolve(ctx, "doi", "10.1234/head")
	if resolved.ID != v2.ID {
		t.Errorf("expected resolution to v2, got %s", resolved.Key())
	}
}

func TestMemoryStoreRedirectSelf(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pid, _ := store.Create(ctx, "doi", "10.1234/foo")
	store.SetStatus(ctx, pid.ID, StatusRegistered)

	if _, err := store.Redirect(ctx, pid.ID, pid.ID); !errors.Is(err, ErrRedirectTarget) {
		t.Errorf("expected ErrRedirectTarget for self-redirect, got %v", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	store.Create(ctx, "doi", "10.1234/b")
	store.Create(ctx, "doi", "10.1234/a")
	store.Create(ctx, "recid", "1")

	dois, err := store.List(ctx, "doi")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(dois) != 2 {
		t.Fatalf("expected 2 dois, got %d", len(dois))
	}
	if dois[0].Value != "10.1234/a" || dois[1].Value != "10.1234/b" {
		t.Errorf("expected ordering by value, got %s, %s", dois[0].Value, dois[1].Value)
	}
}

func TestMemoryStoreClonesState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pid, _ := store.Create(ctx, "doi", "10.1234/foo")
	pid.Status = StatusDeleted // mutate the returned copy

	got, _ := store.Get(ctx, "doi", "10.1234/foo")
	if got.Status != StatusNew {
		t.Errorf("store state leaked: expected NEW, got %s", got.Status)
	}
}
