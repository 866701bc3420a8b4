package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/events"
	"github.com/pidstack/pidrelations/pkg/logging"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/query"
	"github.com/pidstack/pidrelations/pkg/validation"
)

func (s *Server) handleCreatePID(w http.ResponseWriter, r *http.Request) {
	var req validation.PIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := validation.ValidatePIDRequest(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pid, err := s.pids.Create(r.Context(), req.Type, req.Value)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.audit(r, audit.OpPIDCreate, audit.Record{PIDID: pid.ID, Detail: pid.Key()})
	s.publishPIDEvent(events.ActionCreated, pid)

	s.respondJSON(w, http.StatusCreated, pidToResponse(pid))
}

func (s *Server) handleGetPID(w http.ResponseWriter, r *http.Request) {
	pid := s.pidFromPath(w, r)
	if pid == nil {
		return
	}
	s.respondJSON(w, http.StatusOK, pidToResponse(pid))
}

func (s *Server) handleResolvePID(w http.ResponseWriter, r *http.Request) {
	pid, err := s.pids.Resolve(r.Context(), r.PathValue("type"), r.PathValue("value"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, pidToResponse(pid))
}

func (s *Server) handleListPIDs(w http.ResponseWriter, r *http.Request) {
	pids, err := s.pids.List(r.Context(), r.PathValue("type"))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, ListResponse{PIDs: pidsToResponse(pids), Count: len(pids)})
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req validation.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := validation.ValidateStatusRequest(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pid := s.pidFromPath(w, r)
	if pid == nil {
		return
	}

	previous := pid.Status
	pid, err := s.pids.SetStatus(r.Context(), pid.ID, pidstore.Status(req.Status))
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.audit(r, audit.OpPIDStatus, audit.Record{
		PIDID:  pid.ID,
		Detail: previous.String() + " -> " + pid.Status.String(),
	})
	s.publishPIDEvent(events.ActionStatusChanged, pid)

	s.respondJSON(w, http.StatusOK, pidToResponse(pid))
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	var req validation.RedirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := validation.ValidateRedirectRequest(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	target, err := uuid.Parse(req.TargetID)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "target_id must be a valid UUID")
		return
	}

	pid := s.pidFromPath(w, r)
	if pid == nil {
		return
	}

	pid, err = s.pids.Redirect(r.Context(), pid.ID, target)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.metrics.RedirectUpdatesTotal.Inc()
	s.audit(r, audit.OpPIDRedirect, audit.Record{PIDID: pid.ID, RelatedID: &target})
	s.publishPIDEvent(events.ActionRedirected, pid)

	s.respondJSON(w, http.StatusOK, pidToResponse(pid))
}

// handleListRelated serves the children and parents listings with optional
// relation, order and status filters
func (s *Server) handleListRelated(children bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pid := s.pidFromPath(w, r)
		if pid == nil {
			return
		}

		name := r.URL.Query().Get("relation")
		if name == "" {
			name = "version"
		}
		rtype, err := s.registry.GetByName(name)
		if err != nil {
			s.respondStoreError(w, err)
			return
		}

		var view *query.View
		if children {
			view = query.Children(s.rels, s.pids, pid, rtype)
		} else {
			view = query.Parents(s.rels, s.pids, pid, rtype)
		}

		if order := r.URL.Query().Get("order"); order != "" {
			view, err = view.Ordered(query.Order(order))
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
		}
		if statuses := r.URL.Query()["status"]; len(statuses) > 0 {
			filter := make([]pidstore.Status, 0, len(statuses))
			for _, raw := range statuses {
				status := pidstore.Status(raw)
				if !status.Valid() {
					s.respondError(w, http.StatusBadRequest, "invalid_request", "unknown status "+raw)
					return
				}
				filter = append(filter, status)
			}
			view = view.Status(filter...)
		}

		pids, err := view.All(r.Context())
		if err != nil {
			s.respondStoreError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, ListResponse{PIDs: pidsToResponse(pids), Count: len(pids)})
	}
}

func (s *Server) handleTraverse(w http.ResponseWriter, r *http.Request) {
	var req validation.TraverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if err := validation.ValidateTraverseRequest(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	pid := s.pidFromPath(w, r)
	if pid == nil {
		return
	}
	rtype, err := s.registry.GetByName(req.RelationType)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	traverser := query.NewTraverser(s.rels, s.pids)
	var results []query.TraversalResult
	if req.Direction == "down" {
		results, err = traverser.Descendants(r.Context(), pid.ID, rtype.ID, req.MaxDepth)
	} else {
		results, err = traverser.Ancestors(r.Context(), pid.ID, rtype.ID, req.MaxDepth)
	}
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	response := make([]TraverseResponse, 0, len(results))
	maxDepth := 0
	for _, result := range results {
		response = append(response, TraverseResponse{PID: pidToResponse(result.PID), Depth: result.Depth})
		if result.Depth > maxDepth {
			maxDepth = result.Depth
		}
	}
	s.metrics.TraversalDepthVisited.Observe(float64(maxDepth))

	s.respondJSON(w, http.StatusOK, response)
}

// publishPIDEvent fans a PID lifecycle event out to subscribers
func (s *Server) publishPIDEvent(action string, pid *pidstore.PID) {
	event := events.New(events.TopicPIDs, action, pid.ID)
	event.PIDKey = pid.Key()
	s.bus.Publish(event)
	s.metrics.EventsPublishedTotal.WithLabelValues(events.TopicPIDs).Inc()
}

// audit appends a mutation record when audit logging is enabled
func (s *Server) audit(r *http.Request, op audit.OpType, record audit.Record) {
	if s.auditLog == nil {
		return
	}
	record.Actor = actorFrom(r.Context())
	if _, err := s.auditLog.Append(op, record); err != nil {
		s.logger.Error("failed to append audit record", logging.Err(err))
	}
}
