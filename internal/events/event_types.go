package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/query-triage/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventNewQuery       EventType = "new-query"
	EventQueryAssigned  EventType = "query-assigned"
	EventQueryUpdated   EventType = "query-updated"
	EventQueryEscalated EventType = "query-escalated"

	// EventUserTyping is relayed between sessions only. It never passes
	// through a Publisher and is not part of AllTypes.
	EventUserTyping EventType = "user-typing"
)

// AllTypes lists every lifecycle event type in declaration order.
var AllTypes = []EventType{EventNewQuery, EventQueryAssigned, EventQueryUpdated, EventQueryEscalated}

// Event is an immutable notification about a query lifecycle change. It always
// carries the full query snapshot, never a diff.
type Event struct {
	ID          string       `json:"id"`
	Type        EventType    `json:"type"`
	Query       domain.Query `json:"query"`
	RecipientID string       `json:"recipient_id,omitempty"`
	ActorID     string       `json:"actor_id,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

func newEvent(t EventType, q *domain.Query) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Query:     *q.Clone(),
		Timestamp: time.Now().UTC(),
	}
}

// NewQuery announces a freshly triaged query.
func NewQuery(q *domain.Query) Event { return newEvent(EventNewQuery, q) }

// QueryUpdated announces any committed mutation.
func QueryUpdated(q *domain.Query) Event { return newEvent(EventQueryUpdated, q) }

// QueryEscalated announces an escalation.
func QueryEscalated(q *domain.Query) Event { return newEvent(EventQueryEscalated, q) }

// QueryAssigned targets the new assignee only.
func QueryAssigned(q *domain.Query, recipientID string) Event {
	e := newEvent(EventQueryAssigned, q)
	e.RecipientID = recipientID
	return e
}

// UserTyping reports that actorID is typing on queryID. Query carries only
// the id.
func UserTyping(actorID, queryID string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      EventUserTyping,
		Query:     domain.Query{ID: queryID},
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}

// Broadcast reports whether every session should receive the event.
func (e Event) Broadcast() bool {
	return e.Type != EventQueryAssigned
}

// Urgent marks events the UI should surface prominently.
func (e Event) Urgent() bool {
	return e.Type == EventQueryEscalated
}
