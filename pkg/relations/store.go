package relations

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/maps"
)

// Store is the persistence interface for relations.
// ChildRelations returns indexed relations first (ascending index), then
// unindexed ones in creation order.
type Store interface {
	// CreateRelation inserts a new relation edge
	CreateRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int, index *int) (*Relation, error)
	// DeleteRelation removes a relation edge
	DeleteRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) error
	// GetRelation retrieves a single relation edge
	GetRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (*Relation, error)
	// ChildRelations lists the relations from a parent for one type
	ChildRelations(ctx context.Context, parentID uuid.UUID, typeID int) ([]*Relation, error)
	// ParentRelations lists the relations into a child for one type
	ParentRelations(ctx context.Context, childID uuid.UUID, typeID int) ([]*Relation, error)
	// CountChildren counts a parent's children for one type
	CountChildren(ctx context.Context, parentID uuid.UUID, typeID int) (int, error)
	// CountParents counts a child's parents for one type
	CountParents(ctx context.Context, childID uuid.UUID, typeID int) (int, error)
	// HasRelation reports whether an edge exists
	HasRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (bool, error)
	// SetIndexes bulk-assigns sibling indexes under one parent and type.
	// Children absent from the map keep their current index.
	SetIndexes(ctx context.Context, parentID uuid.UUID, typeID int, indexes map[uuid.UUID]*int) error
	// AllRelations returns every stored relation (used by offline validation)
	AllRelations(ctx context.Context) ([]*Relation, error)
	// Ping checks the backing store is reachable
	Ping(ctx context.Context) error
	// Close releases store resources
	Close() error
}

// Statistics tracks store operation counters
type Statistics struct {
	RelationCount uint64
	TotalCreates  uint64
	TotalDeletes  uint64
}

// relationKey is the unique key of an edge
type relationKey struct {
	parent uuid.UUID
	child  uuid.UUID
	typeID int
}

// adjacencyKey addresses one node's edge list for one relation type
type adjacencyKey struct {
	node   uuid.UUID
	typeID int
}

// MemoryStore is the in-memory relation store. Edges live in a primary map
// with adjacency indexes for parent and child lookups, guarded by a RWMutex.
type MemoryStore struct {
	relations map[relationKey]*Relation
	children  map[adjacencyKey][]relationKey // parent -> child edges
	parents   map[adjacencyKey][]relationKey // child -> parent edges
	mu        sync.RWMutex

	totalCreates uint64
	totalDeletes uint64
}

// NewMemoryStore creates an empty in-memory relation store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		relations: make(map[relationKey]*Relation),
		children:  make(map[adjacencyKey][]relationKey),
		parents:   make(map[adjacencyKey][]relationKey),
	}
}

// CreateRelation inserts a new relation edge
func (s *MemoryStore) CreateRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int, index *int) (*Relation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey{parentID, childID, typeID}
	if _, ok := s.relations[key]; ok {
		return nil, fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationExists, parentID, childID, typeID)
	}

	rel := &Relation{
		ParentID:  parentID,
		ChildID:   childID,
		TypeID:    typeID,
		CreatedAt: time.Now().UTC(),
	}
	if index != nil {
		idx := *index
		rel.Index = &idx
	}

	s.relations[key] = rel
	pk := adjacencyKey{parentID, typeID}
	ck := adjacencyKey{childID, typeID}
	s.children[pk] = append(s.children[pk], key)
	s.parents[ck] = append(s.parents[ck], key)
	atomic.AddUint64(&s.totalCreates, 1)

	return rel.clone(), nil
}

// DeleteRelation removes a relation edge
func (s *MemoryStore) DeleteRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey{parentID, childID, typeID}
	if _, ok := s.relations[key]; !ok {
		return fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
	}

	delete(s.relations, key)
	pk := adjacencyKey{parentID, typeID}
	ck := adjacencyKey{childID, typeID}
	s.children[pk] = removeKey(s.children[pk], key)
	s.parents[ck] = removeKey(s.parents[ck], key)
	atomic.AddUint64(&s.totalDeletes, 1)

	return nil
}

func removeKey(keys []relationKey, key relationKey) []relationKey {
	for i, k := range keys {
		if k == key {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}

// GetRelation retrieves a single relation edge
func (s *MemoryStore) GetRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rel, ok := s.relations[relationKey{parentID, childID, typeID}]
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
	}
	return rel.clone(), nil
}

// ChildRelations lists the relations from a parent for one type
func (s *MemoryStore) ChildRelations(ctx context.Context, parentID uuid.UUID, typeID int) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.children[adjacencyKey{parentID, typeID}]
	result := make([]*Relation, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.relations[k].clone())
	}
	sortRelations(result)

	return result, nil
}

// ParentRelations lists the relations into a child for one type
func (s *MemoryStore) ParentRelations(ctx context.Context, childID uuid.UUID, typeID int) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.parents[adjacencyKey{childID, typeID}]
	result := make([]*Relation, 0, len(keys))
	for _, k := range keys {
		result = append(result, s.relations[k].clone())
	}
	sortRelations(result)

	return result, nil
}

// sortRelations orders indexed relations first by index, then unindexed
// relations by creation time
func sortRelations(rels []*Relation) {
	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		switch {
		case a.Index != nil && b.Index != nil:
			return *a.Index < *b.Index
		case a.Index != nil:
			return true
		case b.Index != nil:
			return false
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
}

// CountChildren counts a parent's children for one type
func (s *MemoryStore) CountChildren(ctx context.Context, parentID uuid.UUID, typeID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.children[adjacencyKey{parentID, typeID}]), nil
}

// CountParents counts a child's parents for one type
func (s *MemoryStore) CountParents(ctx context.Context, childID uuid.UUID, typeID int) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parents[adjacencyKey{childID, typeID}]), nil
}

// HasRelation reports whether an edge exists
func (s *MemoryStore) HasRelation(ctx context.Context, parentID, childID uuid.UUID, typeID int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.relations[relationKey{parentID, childID, typeID}]
	return ok, nil
}

// SetIndexes bulk-assigns sibling indexes under one parent and type
func (s *MemoryStore) SetIndexes(ctx context.Context, parentID uuid.UUID, typeID int, indexes map[uuid.UUID]*int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Verify all children exist before mutating anything
	for childID := range indexes {
		if _, ok := s.relations[relationKey{parentID, childID, typeID}]; !ok {
			return fmt.Errorf("%w: %s -> %s (type %d)", ErrRelationNotFound, parentID, childID, typeID)
		}
	}

	for childID, index := range indexes {
		rel := s.relations[relationKey{parentID, childID, typeID}]
		if index == nil {
			rel.Index = nil
			continue
		}
		idx := *index
		rel.Index = &idx
	}
	return nil
}

// AllRelations returns every stored relation (used by offline validation)
func (s *MemoryStore) AllRelations(ctx context.Context) ([]*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Relation, 0, len(s.relations))
	for _, key := range maps.Keys(s.relations) {
		result = append(result, s.relations[key].clone())
	}
	sortRelations(result)

	return result, nil
}

// Stats returns a snapshot of the store counters
func (s *MemoryStore) Stats() Statistics {
	s.mu.RLock()
	count := uint64(len(s.relations))
	s.mu.RUnlock()

	return Statistics{
		RelationCount: count,
		TotalCreates:  atomic.LoadUint64(&s.totalCreates),
		TotalDeletes:  atomic.LoadUint64(&s.totalDeletes),
	}
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	return nil
}
