package api

import (
	"errors"
	"net/http"

	"github.com/pidstack/pidrelations/pkg/logging"
	"github.com/pidstack/pidrelations/pkg/pidstore"
	"github.com/pidstack/pidrelations/pkg/relations"
	"github.com/pidstack/pidrelations/pkg/versioning"
)

// respondStoreError maps domain errors onto HTTP statuses. Unknown errors
// become a 500 without leaking internals.
func (s *Server) respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pidstore.ErrPIDNotFound),
		errors.Is(err, relations.ErrRelationNotFound):
		s.respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, pidstore.ErrPIDExists),
		errors.Is(err, relations.ErrRelationExists),
		errors.Is(err, versioning.ErrDraftExists):
		s.respondError(w, http.StatusConflict, "already_exists", err.Error())
	case errors.Is(err, pidstore.ErrInvalidTransition),
		errors.Is(err, pidstore.ErrRedirectTarget),
		errors.Is(err, versioning.ErrNotDraftStatus),
		errors.Is(err, versioning.ErrNotRegistered),
		errors.Is(err, versioning.ErrNoVersions):
		s.respondError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, versioning.ErrNoDraft):
		s.respondError(w, http.StatusNotFound, "no_draft", err.Error())
	case errors.Is(err, relations.ErrCycle),
		errors.Is(err, relations.ErrSelfRelation),
		errors.Is(err, relations.ErrMaxChildren),
		errors.Is(err, relations.ErrMaxParents):
		s.respondError(w, http.StatusConflict, "guard_rejected", err.Error())
	case errors.Is(err, relations.ErrTypeUnknown):
		s.respondError(w, http.StatusBadRequest, "unknown_relation_type", err.Error())
	case errors.Is(err, relations.ErrNotOrdered),
		errors.Is(err, relations.ErrUnindexedChild):
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, pidstore.ErrInvalidStatus),
		errors.Is(err, pidstore.ErrEmptyKey):
		s.respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("store operation failed", logging.Err(err))
		s.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// guardRejected reports whether an insert was refused by a relation guard,
// for the rejection metric
func guardRejected(err error) (string, bool) {
	switch {
	case errors.Is(err, relations.ErrCycle):
		return "cycle", true
	case errors.Is(err, relations.ErrSelfRelation):
		return "self_relation", true
	case errors.Is(err, relations.ErrMaxChildren):
		return "max_children", true
	case errors.Is(err, relations.ErrMaxParents):
		return "max_parents", true
	case errors.Is(err, relations.ErrRelationExists):
		return "duplicate", true
	}
	return "", false
}
