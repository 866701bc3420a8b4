package relations

import "fmt"

var (
	// ErrRelationNotFound is returned when no relation matches the key
	ErrRelationNotFound = fmt.Errorf("relation not found")
	// ErrRelationExists is returned when creating a duplicate relation
	ErrRelationExists = fmt.Errorf("relation already exists")
	// ErrTypeUnknown is returned for an undeclared relation type
	ErrTypeUnknown = fmt.Errorf("unknown relation type")
	// ErrTypeExists is returned when registering a duplicate relation type
	ErrTypeExists = fmt.Errorf("relation type already registered")
	// ErrInvalidType is returned for a malformed relation type declaration
	ErrInvalidType = fmt.Errorf("invalid relation type")
	// ErrSelfRelation is returned when parent and child are the same PID
	ErrSelfRelation = fmt.Errorf("pid cannot relate to itself")
	// ErrCycle is returned when an insert would close a relation cycle
	ErrCycle = fmt.Errorf("relation would create a cycle")
	// ErrMaxChildren is returned when a parent is at its child limit
	ErrMaxChildren = fmt.Errorf("maximum number of children reached")
	// ErrMaxParents is returned when a child is at its parent limit
	ErrMaxParents = fmt.Errorf("maximum number of parents reached")
	// ErrNotOrdered is returned for index operations on unordered types
	ErrNotOrdered = fmt.Errorf("relation type is not ordered")
	// ErrUnindexedChild is returned for position queries on unindexed children
	ErrUnindexedChild = fmt.Errorf("child relation has no index")
)
