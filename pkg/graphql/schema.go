// Package graphql exposes a read-only GraphQL view of the PID relation
// graph: identifier lookup, related-PID listings and version chains.
package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// Resolver bundles the stores the schema reads from
type Resolver struct {
	pids     pidstore.Store
	rels     relations.Store
	registry *relations.Registry
}

// NewResolver creates the resolver backing the schema
func NewResolver(pids pidstore.Store, rels relations.Store, registry *relations.Registry) *Resolver {
	return &Resolver{pids: pids, rels: rels, registry: registry}
}

// GenerateSchema builds the GraphQL schema over the given resolver
func GenerateSchema(r *Resolver) (graphql.Schema, error) {
	pidType := graphql.NewObject(graphql.ObjectConfig{
		Name: "PID",
		Fields: graphql.Fields{
			"id": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.ID),
				Resolve: pidField(func(p *pidstore.PID) (any, error) { return p.ID.String(), nil }),
			},
			"type": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.String),
				Resolve: pidField(func(p *pidstore.PID) (any, error) { return p.Type, nil }),
			},
			"value": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.String),
				Resolve: pidField(func(p *pidstore.PID) (any, error) { return p.Value, nil }),
			},
			"status": &graphql.Field{
				Type:    graphql.NewNonNull(graphql.String),
				Resolve: pidField(func(p *pidstore.PID) (any, error) { return string(p.Status), nil }),
			},
			"redirectTo": &graphql.Field{
				Type: graphql.ID,
				Resolve: pidField(func(p *pidstore.PID) (any, error) {
					if p.RedirectTo == nil {
						return nil, nil
					}
					return p.RedirectTo.String(), nil
				}),
			},
		},
	})

	relationTypeArg := graphql.FieldConfigArgument{
		"relationType": &graphql.ArgumentConfig{
			Type:         graphql.String,
			DefaultValue: "version",
		},
	}

	pidType.AddFieldConfig("children", &graphql.Field{
		Type:    graphql.NewList(pidType),
		Args:    relationTypeArg,
		Resolve: r.resolveRelated(true),
	})
	pidType.AddFieldConfig("parents", &graphql.Field{
		Type:    graphql.NewList(pidType),
		Args:    relationTypeArg,
		Resolve: r.resolveRelated(false),
	})
	pidType.AddFieldConfig("latestVersion", &graphql.Field{
		Type:    pidType,
		Resolve: r.resolveLatestVersion,
	})

	relationTypeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RelationType",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
			"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"parentLabel": &graphql.Field{Type: graphql.String, Resolve: rtField("parent")},
			"childLabel":  &graphql.Field{Type: graphql.String, Resolve: rtField("child")},
			"ordered":     &graphql.Field{Type: graphql.Boolean, Resolve: rtField("ordered")},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"health": &graphql.Field{
				Type: graphql.String,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return "ok", nil
				},
			},
			"pid": &graphql.Field{
				Type: pidType,
				Args: graphql.FieldConfigArgument{
					"type":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"value": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: r.resolvePID,
			},
			"relationTypes": &graphql.Field{
				Type: graphql.NewList(relationTypeType),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					return r.registry.All(), nil
				},
			},
		},
	})

	schema, err := graphql.NewSchema(graphql.SchemaConfig{Query: queryType})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("failed to create schema: %w", err)
	}
	return schema, nil
}

func pidField(fn func(*pidstore.PID) (any, error)) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		if pid, ok := p.Source.(*pidstore.PID); ok {
			return fn(pid)
		}
		return nil, nil
	}
}

func rtField(name string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		rt, ok := p.Source.(*relations.RelationType)
		if !ok {
			return nil, nil
		}
		switch name {
		case "parent":
			return rt.ParentLabel, nil
		case "child":
			return rt.ChildLabel, nil
		case "ordered":
			return rt.Ordered, nil
		}
		return nil, nil
	}
}
