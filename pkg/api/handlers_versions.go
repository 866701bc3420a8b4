package api

import (
	"encoding/json"
	"net/http"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/events"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/versioning"
)

func (s *Server) handleGetVersions(w http.ResponseWriter, r *http.Request) {
	chain, head := s.chainFor(w, r)
	if chain == nil {
		return
	}

	versions, err := chain.Versions(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	response := VersionsResponse{
		Head:     pidToResponse(head),
		Versions: pidsToResponse(versions),
	}

	draft, err := chain.Draft(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if draft != nil {
		response.Draft = pidToResponse(draft)
	}

	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleAddVersion(w http.ResponseWriter, r *http.Request) {
	var req VersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	chain, head := s.chainFor(w, r)
	if chain == nil {
		return
	}
	child, err := s.pids.Get(r.Context(), req.ChildType, req.ChildValue)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	index := -1
	if req.Index != nil {
		index = *req.Index
	}
	rel, err := chain.InsertVersion(r.Context(), child, index)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.metrics.RecordRelationChange("version", "added")
	s.audit(r, audit.OpRelationAdd, audit.Record{
		PIDID:        head.ID,
		RelatedID:    &child.ID,
		RelationType: "version",
	})
	s.publishVersionEvent(events.ActionRelationAdded, head, child)

	s.respondJSON(w, http.StatusCreated, relationToResponse(rel, s.registry))
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	chain, _ := s.chainFor(w, r)
	if chain == nil {
		return
	}

	draft, err := chain.Draft(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if draft == nil {
		s.respondStoreError(w, versioning.ErrNoDraft)
		return
	}
	s.respondJSON(w, http.StatusOK, pidToResponse(draft))
}

func (s *Server) handleCreateDraft(w http.ResponseWriter, r *http.Request) {
	var req VersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	chain, head := s.chainFor(w, r)
	if chain == nil {
		return
	}
	child, err := s.pids.Get(r.Context(), req.ChildType, req.ChildValue)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	rel, err := chain.InsertDraft(r.Context(), child)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.audit(r, audit.OpRelationAdd, audit.Record{
		PIDID:        head.ID,
		RelatedID:    &child.ID,
		RelationType: "version",
		Detail:       "draft",
	})
	s.publishVersionEvent(events.ActionDraftInserted, head, child)

	s.respondJSON(w, http.StatusCreated, relationToResponse(rel, s.registry))
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	chain, head := s.chainFor(w, r)
	if chain == nil {
		return
	}

	draft, err := chain.Draft(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	if draft == nil {
		s.respondStoreError(w, versioning.ErrNoDraft)
		return
	}
	if err := chain.RemoveDraft(r.Context()); err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.audit(r, audit.OpRelationRemove, audit.Record{
		PIDID:        head.ID,
		RelatedID:    &draft.ID,
		RelationType: "version",
		Detail:       "draft",
	})
	s.publishVersionEvent(events.ActionRelationRemoved, head, draft)

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePublishDraft(w http.ResponseWriter, r *http.Request) {
	chain, head := s.chainFor(w, r)
	if chain == nil {
		return
	}

	published, err := chain.PublishDraft(r.Context())
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.metrics.DraftsPublishedTotal.Inc()
	s.audit(r, audit.OpDraftPublish, audit.Record{
		PIDID:        head.ID,
		RelatedID:    &published.ID,
		RelationType: "version",
	})
	s.publishVersionEvent(events.ActionDraftPublished, head, published)

	s.respondJSON(w, http.StatusOK, pidToResponse(published))
}

func (s *Server) publishVersionEvent(action string, head, child *pidstore.PID) {
	event := events.New(events.TopicVersions, action, head.ID)
	event.PIDKey = head.Key()
	event.RelatedID = &child.ID
	event.RelationType = "version"
	s.bus.Publish(event)
	s.metrics.EventsPublishedTotal.WithLabelValues(events.TopicVersions).Inc()
}
