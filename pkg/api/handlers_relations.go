package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/pidstack/pidrelations/pkg/audit"
	"github.com/pidstack/pidrelations/pkg/events"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/validation"
)

// relationArgs is a decoded, resolved relation request: both endpoints loaded
// and the relation type looked up
type relationArgs struct {
	parent *pidstore.PID
	child  *pidstore.PID
	rtype  *relations.RelationType
	index  *int
}

// decodeRelationArgs parses and resolves a relation mutation request. A nil
// result means the response has already been written.
func (s *Server) decodeRelationArgs(w http.ResponseWriter, r *http.Request) *relationArgs {
	var req validation.RelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return nil
	}
	if err := validation.ValidateRelationRequest(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil
	}

	parentID, _ := uuid.Parse(req.ParentID)
	childID, _ := uuid.Parse(req.ChildID)

	rtype, err := s.registry.GetByName(req.RelationType)
	if err != nil {
		s.respondStoreError(w, err)
		return nil
	}
	parent, err := s.pids.GetByID(r.Context(), parentID)
	if err != nil {
		s.respondStoreError(w, err)
		return nil
	}
	child, err := s.pids.GetByID(r.Context(), childID)
	if err != nil {
		s.respondStoreError(w, err)
		return nil
	}

	return &relationArgs{parent: parent, child: child, rtype: rtype, index: req.Index}
}

func (s *Server) handleCreateRelation(w http.ResponseWriter, r *http.Request) {
	args := s.decodeRelationArgs(w, r)
	if args == nil {
		return
	}

	var rel *relations.Relation
	var err error
	if args.rtype.Ordered {
		node, nodeErr := relations.NewOrderedNode(s.rels, s.pids, args.parent, args.rtype)
		if nodeErr != nil {
			s.respondStoreError(w, nodeErr)
			return
		}
		if args.index != nil {
			rel, err = node.InsertChildAt(r.Context(), args.child, *args.index)
		} else {
			rel, err = node.InsertChild(r.Context(), args.child)
		}
	} else {
		if args.index != nil {
			s.respondError(w, http.StatusBadRequest, "invalid_request",
				"index is only valid for ordered relation types")
			return
		}
		rel, err = relations.NewNode(s.rels, s.pids, args.parent, args.rtype).InsertChild(r.Context(), args.child)
	}
	if err != nil {
		if reason, rejected := guardRejected(err); rejected {
			s.metrics.RecordGuardRejection(args.rtype.Name, reason)
		}
		s.respondStoreError(w, err)
		return
	}

	s.metrics.RecordRelationChange(args.rtype.Name, "added")
	s.audit(r, audit.OpRelationAdd, audit.Record{
		PIDID:        args.parent.ID,
		RelatedID:    &args.child.ID,
		RelationType: args.rtype.Name,
	})
	s.publishRelationEvent(events.ActionRelationAdded, args)

	s.respondJSON(w, http.StatusCreated, relationToResponse(rel, s.registry))
}

func (s *Server) handleDeleteRelation(w http.ResponseWriter, r *http.Request) {
	args := s.decodeRelationArgs(w, r)
	if args == nil {
		return
	}

	var err error
	if args.rtype.Ordered {
		node, nodeErr := relations.NewOrderedNode(s.rels, s.pids, args.parent, args.rtype)
		if nodeErr != nil {
			s.respondStoreError(w, nodeErr)
			return
		}
		err = node.RemoveChild(r.Context(), args.child, true)
	} else {
		err = relations.NewNode(s.rels, s.pids, args.parent, args.rtype).RemoveChild(r.Context(), args.child)
	}
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.metrics.RecordRelationChange(args.rtype.Name, "removed")
	s.audit(r, audit.OpRelationRemove, audit.Record{
		PIDID:        args.parent.ID,
		RelatedID:    &args.child.ID,
		RelationType: args.rtype.Name,
	})
	s.publishRelationEvent(events.ActionRelationRemoved, args)

	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListRelationTypes(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.registry.All())
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	result, err := s.validator.Validate(r.Context(), s.rels)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	s.recordValidation(result)
	s.updateGraphSize(r.Context())
	s.respondJSON(w, http.StatusOK, result)
}

// updateGraphSize refreshes the relation count gauges. Piggybacks on
// validation runs, which already walk the whole graph.
func (s *Server) updateGraphSize(ctx context.Context) {
	rels, err := s.rels.AllRelations(ctx)
	if err != nil {
		return
	}
	byType := make(map[string]int)
	for _, rel := range rels {
		if rt, err := s.registry.Get(rel.TypeID); err == nil {
			byType[rt.Name]++
		}
	}
	s.metrics.UpdateGraphSize(nil, byType)
}

func (s *Server) publishRelationEvent(action string, args *relationArgs) {
	event := events.New(events.TopicRelations, action, args.parent.ID)
	event.PIDKey = args.parent.Key()
	event.RelatedID = &args.child.ID
	event.RelationType = args.rtype.Name
	s.bus.Publish(event)
	s.metrics.EventsPublishedTotal.WithLabelValues(events.TopicRelations).Inc()
}
