package realtime

import (
	"time"

	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/events"
)

// Message is the JSON frame pushed to operator clients.
type Message struct {
	Type        events.EventType `json:"type"`
	Message     string           `json:"message,omitempty"`
	Query       *domain.Query    `json:"query,omitempty"`
	RecipientID string           `json:"recipient_id,omitempty"`
	Priority    string           `json:"priority,omitempty"`
	UserID      string           `json:"userId,omitempty"`
	QueryID     string           `json:"queryId,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Inbound is a frame sent by a client.
type Inbound struct {
	Type    string `json:"type"`
	QueryID string `json:"queryId"`
}

// InboundTyping announces that the sender is typing on a query.
const InboundTyping = "typing"

var eventMessages = map[events.EventType]string{
	events.EventNewQuery:       "New query received!",
	events.EventQueryAssigned:  "A query has been assigned to you",
	events.EventQueryUpdated:   "Query updated",
	events.EventQueryEscalated: "URGENT: Query escalated!",
}

// NewMessage renders event for the wire.
func NewMessage(event events.Event) Message {
	if event.Type == events.EventUserTyping {
		return Message{
			Type:      event.Type,
			UserID:    event.ActorID,
			QueryID:   event.Query.ID,
			Timestamp: event.Timestamp,
		}
	}
	q := event.Query
	msg := Message{
		Type:        event.Type,
		Message:     eventMessages[event.Type],
		Query:       &q,
		RecipientID: event.RecipientID,
		Timestamp:   event.Timestamp,
	}
	if event.Urgent() {
		msg.Priority = "high"
	}
	return msg
}
