// Package events fans out domain events to in-process subscribers and,
// optionally, to external consumers over an NNG pub socket.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Topics group events by the aggregate they concern
const (
	TopicPIDs      = "pids"
	TopicRelations = "relations"
	TopicVersions  = "versions"
)

// Actions name what happened
const (
	ActionCreated         = "created"
	ActionStatusChanged   = "status_changed"
	ActionRedirected      = "redirected"
	ActionRelationAdded   = "relation_added"
	ActionRelationMoved   = "relation_moved"
	ActionRelationRemoved = "relation_removed"
	ActionDraftInserted   = "draft_inserted"
	ActionDraftPublished  = "draft_published"
)

// Event is one domain event. Relation fields are only set for relation and
// version topics.
type Event struct {
	ID           uuid.UUID  `json:"id"`
	Topic        string     `json:"topic"`
	Action       string     `json:"action"`
	PIDID        uuid.UUID  `json:"pid_id"`
	PIDKey       string     `json:"pid_key,omitempty"`
	RelatedID    *uuid.UUID `json:"related_id,omitempty"`
	RelationType string     `json:"relation_type,omitempty"`
	At           time.Time  `json:"at"`
}

// New creates an event with a fresh id and timestamp
func New(topic, action string, pidID uuid.UUID) Event {
	return Event{
		ID:     uuid.New(),
		Topic:  topic,
		Action: action,
		PIDID:  pidID,
		At:     time.Now(),
	}
}

// Encode renders the event as JSON for the wire
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a wire frame back into an event
func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
