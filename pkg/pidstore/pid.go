package pidstore

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a persistent identifier.
// The single-character codes match what gets persisted in the status column.
type Status string

const (
	// StatusNew is a PID that has been minted but not yet reserved or registered
	StatusNew Status = "N"
	// StatusReserved is a PID reserved with an external provider but not yet public
	StatusReserved Status = "K"
	// StatusRegistered is a resolvable, public PID
	StatusRegistered Status = "R"
	// StatusRedirected is a PID that forwards resolution to another PID
	StatusRedirected Status = "M"
	// StatusDeleted is a tombstoned PID; the natural key stays reserved forever
	StatusDeleted Status = "D"
)

// String returns a human-readable name for the status
func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusReserved:
		return "RESERVED"
	case StatusRegistered:
		return "REGISTERED"
	case StatusRedirected:
		return "REDIRECTED"
	case StatusDeleted:
		return "DELETED"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the status is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusReserved, StatusRegistered, StatusRedirected, StatusDeleted:
		return true
	}
	return false
}

// allowedTransitions maps each status to the set of statuses it may move to.
// Deleted is terminal. Redirected PIDs can be restored to Registered when the
// redirect is retargeted or withdrawn.
var allowedTransitions = map[Status][]Status{
	StatusNew:        {StatusReserved, StatusRegistered, StatusDeleted},
	StatusReserved:   {StatusRegistered, StatusDeleted},
	StatusRegistered: {StatusRedirected, StatusDeleted},
	StatusRedirected: {StatusRegistered, StatusDeleted},
	StatusDeleted:    {},
}

// CanTransition reports whether a status change from -> to is legal
func CanTransition(from, to Status) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PID is a persistent identifier record. The (Type, Value) pair is the
// natural key used by external systems; ID is the internal object id that
// relations reference.
type PID struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"pid_type"`
	Value      string     `json:"pid_value"`
	Status     Status     `json:"status"`
	RedirectTo *uuid.UUID `json:"redirect_to,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Key returns the natural key in "type:value" form
func (p *PID) Key() string {
	return p.Type + ":" + p.Value
}

// IsRegistered reports whether the PID resolves publicly
func (p *PID) IsRegistered() bool {
	return p.Status == StatusRegistered
}

// IsRedirected reports whether the PID forwards to another PID
func (p *PID) IsRedirected() bool {
	return p.Status == StatusRedirected
}

// IsDeleted reports whether the PID has been tombstoned
func (p *PID) IsDeleted() bool {
	return p.Status == StatusDeleted
}

// clone returns a copy so store internals never leak mutable state
func (p *PID) clone() *PID {
	cp := *p
	if p.RedirectTo != nil {
		target := *p.RedirectTo
		cp.RedirectTo = &target
	}
	return &cp
}
