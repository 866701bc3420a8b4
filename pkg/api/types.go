package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
)

// PIDResponse is the wire shape of a persistent identifier
type PIDResponse struct {
	ID         uuid.UUID  `json:"id"`
	Type       string     `json:"type"`
	Value      string     `json:"value"`
	Status     string     `json:"status"`
	RedirectTo *uuid.UUID `json:"redirect_to,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func pidToResponse(pid *pidstore.PID) *PIDResponse {
	if pid == nil {
		return nil
	}
	return &PIDResponse{
		ID:         pid.ID,
		Type:       pid.Type,
		Value:      pid.Value,
		Status:     string(pid.Status),
		RedirectTo: pid.RedirectTo,
		CreatedAt:  pid.CreatedAt,
		UpdatedAt:  pid.UpdatedAt,
	}
}

func pidsToResponse(pids []*pidstore.PID) []*PIDResponse {
	out := make([]*PIDResponse, 0, len(pids))
	for _, pid := range pids {
		out = append(out, pidToResponse(pid))
	}
	return out
}

// RelationResponse is the wire shape of a relation
type RelationResponse struct {
	ParentID     uuid.UUID `json:"parent_id"`
	ChildID      uuid.UUID `json:"child_id"`
	RelationType string    `json:"relation_type"`
	Index        *int      `json:"index,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func relationToResponse(rel *relations.Relation, registry *relations.Registry) *RelationResponse {
	name := ""
	if rt, err := registry.Get(rel.TypeID); err == nil {
		name = rt.Name
	}
	return &RelationResponse{
		ParentID:     rel.ParentID,
		ChildID:      rel.ChildID,
		RelationType: name,
		Index:        rel.Index,
		CreatedAt:    rel.CreatedAt,
	}
}

// ListResponse wraps a PID listing
type ListResponse struct {
	PIDs  []*PIDResponse `json:"pids"`
	Count int            `json:"count"`
}

// VersionsResponse describes a version chain
type VersionsResponse struct {
	Head     *PIDResponse   `json:"head"`
	Versions []*PIDResponse `json:"versions"`
	Draft    *PIDResponse   `json:"draft,omitempty"`
}

// TraverseResponse is one traversal result row
type TraverseResponse struct {
	PID   *PIDResponse `json:"pid"`
	Depth int          `json:"depth"`
}

// VersionRequest adds an existing PID to a version chain
type VersionRequest struct {
	ChildType  string `json:"child_type"`
	ChildValue string `json:"child_value"`
	Index      *int   `json:"index,omitempty"`
}

// TokenRequest exchanges an admin API key for a JWT
type TokenRequest struct {
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

// APIKeyRequest creates a new API key
type APIKeyRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// APIKeyResponse returns the plaintext key exactly once
type APIKeyResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Key       string    `json:"key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Revoked   bool      `json:"revoked"`
}

// ErrorResponse is the error envelope for all non-2xx responses
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
