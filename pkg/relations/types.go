package relations

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Relation is a directed, typed edge between two PIDs. Index orders siblings
// under the same parent; nil means the child is unordered (e.g. a draft).
// Relations are unique on (ParentID, ChildID, TypeID).
type Relation struct {
	ParentID  uuid.UUID `json:"parent_id"`
	ChildID   uuid.UUID `json:"child_id"`
	TypeID    int       `json:"relation_type"`
	Index     *int      `json:"index,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the identity of the edge as "parent/child/type"
func (r *Relation) Key() string {
	return fmt.Sprintf("%s/%s/%d", r.ParentID, r.ChildID, r.TypeID)
}

// Indexed reports whether the relation participates in sibling ordering
func (r *Relation) Indexed() bool {
	return r.Index != nil
}

// clone returns a copy so store internals never leak mutable state
func (r *Relation) clone() *Relation {
	cp := *r
	if r.Index != nil {
		idx := *r.Index
		cp.Index = &idx
	}
	return &cp
}

// RelationType describes one kind of relation between PIDs.
// Labels are per-direction: ParentLabel names the relation as seen from the
// parent ("Has Version"), ChildLabel as seen from the child ("Is Version Of").
type RelationType struct {
	ID          int    `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	ParentLabel string `json:"parent_label" yaml:"parent_label"`
	ChildLabel  string `json:"child_label" yaml:"child_label"`
	// Ordered relation types keep a dense 0..n-1 index over their children
	Ordered bool `json:"ordered" yaml:"ordered"`
	// MaxParents limits how many parents a child may have (0 = unlimited)
	MaxParents int `json:"max_parents" yaml:"max_parents"`
	// MaxChildren limits how many children a parent may have (0 = unlimited)
	MaxChildren int `json:"max_children" yaml:"max_children"`
}

// Well-known relation type ids seeded by DefaultRegistry
const (
	TypeVersion = 0
	TypePartOf  = 1
)

// Registry holds the declared relation types, keyed by id and name
type Registry struct {
	byID   map[int]*RelationType
	byName map[string]*RelationType
	mu     sync.RWMutex
}

// NewRegistry creates an empty relation type registry
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[int]*RelationType),
		byName: make(map[string]*RelationType),
	}
}

// DefaultRegistry creates a registry seeded with the built-in relation types:
// an ordered version chain and an unordered membership relation.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&RelationType{
		ID:          TypeVersion,
		Name:        "version",
		ParentLabel: "Has Version",
		ChildLabel:  "Is Version Of",
		Ordered:     true,
		MaxParents:  1,
	})
	r.Register(&RelationType{
		ID:          TypePartOf,
		Name:        "part_of",
		ParentLabel: "Has Part",
		ChildLabel:  "Is Part Of",
	})
	return r
}

// Register adds a relation type. Both id and name must be unused.
func (r *Registry) Register(rt *RelationType) error {
	if rt.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidType)
	}
	if rt.MaxParents < 0 || rt.MaxChildren < 0 {
		return fmt.Errorf("%w: negative cardinality limit", ErrInvalidType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[rt.ID]; ok {
		return fmt.Errorf("%w: id %d", ErrTypeExists, rt.ID)
	}
	if _, ok := r.byName[rt.Name]; ok {
		return fmt.Errorf("%w: name %q", ErrTypeExists, rt.Name)
	}

	r.byID[rt.ID] = rt
	r.byName[rt.Name] = rt
	return nil
}

// Get retrieves a relation type by id
func (r *Registry) Get(id int) (*RelationType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrTypeUnknown, id)
	}
	return rt, nil
}

// GetByName retrieves a relation type by name
func (r *Registry) GetByName(name string) (*RelationType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: name %q", ErrTypeUnknown, name)
	}
	return rt, nil
}

// All returns the registered types ordered by id
func (r *Registry) All() []*RelationType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*RelationType, 0, len(r.byID))
	for _, rt := range r.byID {
		result = append(result, rt)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
