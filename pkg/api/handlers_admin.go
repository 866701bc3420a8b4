package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/auth"
	"github.com/pidstack/pidrelations/pkg/logging"
)

func (s *Server) handleMintToken(w http.ResponseWriter, r *http.Request) {
	if s.jwt == nil {
		s.respondError(w, http.StatusNotImplemented, "auth_disabled", "token auth is not enabled")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	token, err := s.jwt.GenerateToken(req.Subject, req.Role)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]string{"token": token})
}

func (s *Server) handleCreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req APIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	switch req.Role {
	case auth.RoleAdmin, auth.RoleCurator, auth.RoleReader:
	default:
		s.respondError(w, http.StatusBadRequest, "invalid_request", "unknown role")
		return
	}

	keyString, key, err := s.apiKeys.Create(req.Name, req.Role)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "internal_error", "failed to create api key")
		return
	}

	s.respondJSON(w, http.StatusCreated, APIKeyResponse{
		ID:        key.ID,
		Name:      key.Name,
		Role:      key.Role,
		Key:       keyString,
		CreatedAt: key.CreatedAt,
	})
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys := s.apiKeys.List()
	response := make([]APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		response = append(response, APIKeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			Role:      key.Role,
			CreatedAt: key.CreatedAt,
			Revoked:   key.Revoked,
		})
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleRevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := s.apiKeys.Revoke(r.PathValue("id")); err != nil {
		s.respondError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

// handleAuditExport streams the audit log as JSON or CSV, optionally limited
// to a time window
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		s.respondError(w, http.StatusNotImplemented, "audit_disabled", "audit logging is not enabled")
		return
	}

	filter, err := parseAuditFilter(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		_, err = s.auditLog.ExportJSON(w, filter)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
		_, err = s.auditLog.ExportCSV(w, filter)
	default:
		s.respondError(w, http.StatusBadRequest, "invalid_request", "format must be json or csv")
		return
	}
	if err != nil {
		s.logger.Error("audit export failed", logging.Err(err))
	}
}

func parseAuditFilter(r *http.Request) (*audit.Filter, error) {
	filter := &audit.Filter{}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, err
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return nil, err
		}
		filter.To = t
	}
	for _, name := range r.URL.Query()["op"] {
		op, ok := opByName(name)
		if !ok {
			return nil, fmt.Errorf("unknown op %q", name)
		}
		filter.Ops = append(filter.Ops, op)
	}
	return filter, nil
}

var auditOps = []audit.OpType{
	audit.OpPIDCreate, audit.OpPIDStatus, audit.OpPIDRedirect,
	audit.OpRelationAdd, audit.OpRelationRemove, audit.OpRelationReorder,
	audit.OpDraftPublish,
}

func opByName(name string) (audit.OpType, bool) {
	for _, op := range auditOps {
		if op.String() == name {
			return op, true
		}
	}
	return 0, false
}
