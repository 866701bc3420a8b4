// Package query provides read-side views over the relation store: filtered,
// ordered listings of related PIDs and transitive traversals.
package query

import (
	"context"
	"fmt"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// Order is the sibling-index ordering of a view
type Order string

const (
	// Asc orders children by ascending index
	Asc Order = "asc"
	// Desc orders children by descending index
	Desc Order = "desc"
)

// View is an immutable query builder over one side of a node's relations.
// Builder methods return a modified copy, so views can be shared and forked.
type View struct {
	store      relations.Store
	pids       pidstore.Store
	pid        *pidstore.PID
	rtype      *relations.RelationType
	fromParent bool
	order      Order
	statuses   []pidstore.Status
}

// Children creates a view over the PIDs a node points at
func Children(store relations.Store, pids pidstore.Store, pid *pidstore.PID, rtype *relations.RelationType) *View {
	return &View{store: store, pids: pids, pid: pid, rtype: rtype, fromParent: true, order: Asc}
}

// Parents creates a view over the PIDs pointing at a node
func Parents(store relations.Store, pids pidstore.Store, pid *pidstore.PID, rtype *relations.RelationType) *View {
	return &View{store: store, pids: pids, pid: pid, rtype: rtype, fromParent: false, order: Asc}
}

// Ordered sets the index ordering of the view
func (v *View) Ordered(order Order) (*View, error) {
	if order != Asc && order != Desc {
		return nil, fmt.Errorf("order must be %q or %q, got %q", Asc, Desc, order)
	}
	cp := *v
	cp.order = order
	return &cp, nil
}

// Status restricts the view to PIDs in one of the given statuses
func (v *View) Status(statuses ...pidstore.Status) *View {
	cp := *v
	cp.statuses = append(append([]pidstore.Status{}, v.statuses...), statuses...)
	return &cp
}

// All resolves the view to the matching PIDs
func (v *View) All(ctx context.Context) ([]*pidstore.PID, error) {
	var rels []*relations.Relation
	var err error
	if v.fromParent {
		rels, err = v.store.ChildRelations(ctx, v.pid.ID, v.rtype.ID)
	} else {
		rels, err = v.store.ParentRelations(ctx, v.pid.ID, v.rtype.ID)
	}
	if err != nil {
		return nil, err
	}

	if v.order == Desc {
		for i, j := 0, len(rels)-1; i < j; i, j = i+1, j-1 {
			rels[i], rels[j] = rels[j], rels[i]
		}
	}

	result := make([]*pidstore.PID, 0, len(rels))
	for _, rel := range rels {
		id := rel.ChildID
		if !v.fromParent {
			id = rel.ParentID
		}
		pid, err := v.pids.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve related pid: %w", err)
		}
		if v.matches(pid) {
			result = append(result, pid)
		}
	}
	return result, nil
}

func (v *View) matches(pid *pidstore.PID) bool {
	if len(v.statuses) == 0 {
		return true
	}
	for _, s := range v.statuses {
		if pid.Status == s {
			return true
		}
	}
	return false
}

// First returns the first matching PID, or nil if the view is empty
func (v *View) First(ctx context.Context) (*pidstore.PID, error) {
	all, err := v.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

// Count returns the number of matching PIDs
func (v *View) Count(ctx context.Context) (int, error) {
	all, err := v.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// Exists reports whether the view matches any PID
func (v *View) Exists(ctx context.Context) (bool, error) {
	count, err := v.Count(ctx)
	return count > 0, err
}
