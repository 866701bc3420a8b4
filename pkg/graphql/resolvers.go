package graphql

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/query"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/versioning"
)

// resolvePID looks a PID up by (type, value)
func (r *Resolver) resolvePID(p graphql.ResolveParams) (any, error) {
	pidType, _ := p.Args["type"].(string)
	value, _ := p.Args["value"].(string)

	pid, err := r.pids.Get(p.Context, pidType, value)
	if errors.Is(err, pidstore.ErrPIDNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pid, nil
}

// resolveRelated lists the children or parents of the source PID for one
// relation type
func (r *Resolver) resolveRelated(children bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		pid, ok := p.Source.(*pidstore.PID)
		if !ok {
			return nil, nil
		}

		name, _ := p.Args["relationType"].(string)
		rtype, err := r.registry.GetByName(name)
		if err != nil {
			return nil, fmt.Errorf("unknown relation type %q", name)
		}

		var view *query.View
		if children {
			view = query.Children(r.rels, r.pids, pid, rtype)
		} else {
			view = query.Parents(r.rels, r.pids, pid, rtype)
		}
		return view.All(p.Context)
	}
}

// resolveLatestVersion returns the newest registered version under the
// source PID, or nil if it heads no version chain
func (r *Resolver) resolveLatestVersion(p graphql.ResolveParams) (any, error) {
	pid, ok := p.Source.(*pidstore.PID)
	if !ok {
		return nil, nil
	}

	chain, err := versioning.NewChain(r.rels, r.pids, pid, r.registry)
	if err != nil {
		if errors.Is(err, relations.ErrTypeUnknown) {
			return nil, nil
		}
		return nil, err
	}

	last, err := chain.Last(p.Context)
	if err != nil {
		return nil, err
	}
	return last, nil
}
