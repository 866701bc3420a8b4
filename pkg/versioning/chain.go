// Package versioning implements version chains over the ordered "version"
// relation type. A chain is a head PID whose children are the versions of a
// record; the head redirects to the latest registered version, and at most
// one unpublished draft may sit in the chain at a time.
package versioning

import (
	"context"
	"errors"
	"fmt"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

var (
	// ErrDraftExists is returned when a chain already holds a draft
	ErrDraftExists = fmt.Errorf("chain already has a draft version")
	// ErrNoDraft is returned when a draft operation finds no draft
	ErrNoDraft = fmt.Errorf("chain has no draft version")
	// ErrNotDraftStatus is returned when inserting a draft that is not NEW
	ErrNotDraftStatus = fmt.Errorf("draft pid must be in status NEW")
	// ErrNotRegistered is returned when inserting an unregistered version
	ErrNotRegistered = fmt.Errorf("version pid must be REGISTERED")
	// ErrNoVersions is returned when a redirect update finds no registered version
	ErrNoVersions = fmt.Errorf("chain has no registered versions")
)

// Chain is the versioning API around a head PID
type Chain struct {
	node  *relations.OrderedNode
	store relations.Store
	pids  pidstore.Store
	head  *pidstore.PID
}

// NewChain creates a version chain API for the given head PID
func NewChain(store relations.Store, pids pidstore.Store, head *pidstore.PID, registry *relations.Registry) (*Chain, error) {
	rtype, err := registry.Get(relations.TypeVersion)
	if err != nil {
		return nil, err
	}
	node, err := relations.NewOrderedNode(store, pids, head, rtype)
	if err != nil {
		return nil, err
	}
	return &Chain{node: node, store: store, pids: pids, head: head}, nil
}

// Head returns the chain's head PID
func (c *Chain) Head() *pidstore.PID {
	return c.head
}

// Versions returns all version PIDs in chain order, drafts last
func (c *Chain) Versions(ctx context.Context) ([]*pidstore.PID, error) {
	return c.node.Children(ctx)
}

// Last returns the latest indexed version, or nil for an empty chain
func (c *Chain) Last(ctx context.Context) (*pidstore.PID, error) {
	return c.node.LastChild(ctx)
}

// Draft returns the chain's draft version, or nil if there is none.
// A draft is an unindexed child in status NEW.
func (c *Chain) Draft(ctx context.Context) (*pidstore.PID, error) {
	rels, err := c.node.ChildRelations(ctx)
	if err != nil {
		return nil, err
	}
	for _, rel := range rels {
		if rel.Indexed() {
			continue
		}
		pid, err := c.pids.GetByID(ctx, rel.ChildID)
		if err != nil {
			return nil, err
		}
		if pid.Status == pidstore.StatusNew {
			return pid, nil
		}
	}
	return nil, nil
}

// InsertVersion appends a registered PID to the chain (index -1) or inserts
// it at the given position, then retargets the head redirect
func (c *Chain) InsertVersion(ctx context.Context, child *pidstore.PID, index int) (*relations.Relation, error) {
	if child.Status != pidstore.StatusRegistered {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotRegistered, child.Key(), child.Status)
	}

	rel, err := c.node.InsertChildAt(ctx, child, index)
	if err != nil {
		return nil, err
	}

	if err := c.UpdateRedirect(ctx); err != nil {
		return nil, err
	}
	return rel, nil
}

// InsertDraft adds an unindexed draft child in status NEW.
// Only one draft may exist per chain.
func (c *Chain) InsertDraft(ctx context.Context, child *pidstore.PID) (*relations.Relation, error) {
	if child.Status != pidstore.StatusNew {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotDraftStatus, child.Key(), child.Status)
	}

	existing, err := c.Draft(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrDraftExists, existing.Key())
	}

	return c.node.Node.InsertChild(ctx, child)
}

// PublishDraft registers the draft, assigns it the next index and retargets
// the head redirect. Returns the published PID.
func (c *Chain) PublishDraft(ctx context.Context) (*pidstore.PID, error) {
	draft, err := c.Draft(ctx)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrNoDraft
	}

	published, err := c.pids.SetStatus(ctx, draft.ID, pidstore.StatusRegistered)
	if err != nil {
		return nil, fmt.Errorf("failed to register draft: %w", err)
	}
	if _, err := c.node.MarkIndexed(ctx, published); err != nil {
		return nil, err
	}
	if err := c.UpdateRedirect(ctx); err != nil {
		return nil, err
	}
	return published, nil
}

// RemoveDraft removes the draft relation from the chain.
// The draft PID itself is left untouched.
func (c *Chain) RemoveDraft(ctx context.Context) error {
	draft, err := c.Draft(ctx)
	if err != nil {
		return err
	}
	if draft == nil {
		return ErrNoDraft
	}
	return c.node.RemoveChild(ctx, draft, false)
}

// RemoveVersion removes a version, renumbers the remaining siblings and
// retargets the head redirect. Removing the only registered version leaves
// the head redirect in place, pointing at the removed PID's record.
func (c *Chain) RemoveVersion(ctx context.Context, child *pidstore.PID) error {
	if err := c.node.RemoveChild(ctx, child, true); err != nil {
		return err
	}

	if err := c.UpdateRedirect(ctx); err != nil && !errors.Is(err, ErrNoVersions) {
		return err
	}
	return nil
}

// UpdateRedirect points the head at the latest registered version.
// Returns ErrNoVersions if the chain has no registered versions.
func (c *Chain) UpdateRedirect(ctx context.Context) error {
	rels, err := c.node.ChildRelations(ctx)
	if err != nil {
		return err
	}

	// Walk from the highest index down to the first registered version
	var target *pidstore.PID
	for i := len(rels) - 1; i >= 0; i-- {
		if !rels[i].Indexed() {
			continue
		}
		pid, err := c.pids.GetByID(ctx, rels[i].ChildID)
		if err != nil {
			return err
		}
		if pid.Status == pidstore.StatusRegistered {
			target = pid
			break
		}
	}
	if target == nil {
		return ErrNoVersions
	}

	if _, err := c.pids.Redirect(ctx, c.head.ID, target.ID); err != nil {
		return fmt.Errorf("failed to update head redirect: %w", err)
	}
	return nil
}

// Resolve returns the PID the chain head currently resolves to
func (c *Chain) Resolve(ctx context.Context) (*pidstore.PID, error) {
	return c.pids.Resolve(ctx, c.head.Type, c.head.Value)
}
