package domain

import (
	"slices"
	"time"
)

// QueryStatus enumerates lifecycle states for queries.
type QueryStatus string

const (
	QueryStatusNew        QueryStatus = "new"
	QueryStatusAssigned   QueryStatus = "assigned"
	QueryStatusInProgress QueryStatus = "in-progress"
	QueryStatusResolved   QueryStatus = "resolved"
	QueryStatusClosed     QueryStatus = "closed"
)

// Valid reports whether s is a known status.
func (s QueryStatus) Valid() bool {
	switch s {
	case QueryStatusNew, QueryStatusAssigned, QueryStatusInProgress, QueryStatusResolved, QueryStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether s ends the response clock.
func (s QueryStatus) Terminal() bool {
	return s == QueryStatusResolved || s == QueryStatusClosed
}

// Channel identifies where an inbound message came from.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelSocial    Channel = "social"
	ChannelChat      Channel = "chat"
	ChannelCommunity Channel = "community"
	ChannelWeb       Channel = "web"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSocial, ChannelChat, ChannelCommunity, ChannelWeb:
		return true
	}
	return false
}

// Category is the triage bucket a query is filed under.
type Category string

const (
	CategoryQuestion  Category = "question"
	CategoryRequest   Category = "request"
	CategoryComplaint Category = "complaint"
	CategoryFeedback  Category = "feedback"
	CategoryUrgent    Category = "urgent"
	CategoryGeneral   Category = "general"
)

// Priority bounds.
const (
	MinPriority = 1
	MaxPriority = 5
)

// IncomingMessage is what a channel adapter hands to the engine. It is consumed
// once and never stored as-is.
type IncomingMessage struct {
	Subject       string   `json:"subject" validate:"required,max=500"`
	Body          string   `json:"body" validate:"required"`
	Channel       Channel  `json:"channel" validate:"required,oneof=email social chat community web"`
	SenderName    string   `json:"sender_name" validate:"required"`
	SenderContact string   `json:"sender_contact" validate:"required"`
	Tags          []string `json:"tags,omitempty" validate:"dive,required"`
}

// Note is an operator remark on a query.
type Note struct {
	Text     string    `json:"text"`
	AuthorID string    `json:"author_id"`
	AddedAt  time.Time `json:"added_at"`
}

// Query is one customer inquiry tracked from triage to resolution.
type Query struct {
	ID                  string      `json:"id"`
	Subject             string      `json:"subject"`
	Body                string      `json:"body"`
	Channel             Channel     `json:"channel"`
	CustomerName        string      `json:"customer_name"`
	CustomerContact     string      `json:"customer_contact"`
	Category            Category    `json:"category"`
	Priority            int         `json:"priority"`
	Status              QueryStatus `json:"status"`
	AssigneeID          *string     `json:"assignee_id"`
	IsEscalated         bool        `json:"is_escalated"`
	ResolvedAt          *time.Time  `json:"resolved_at"`
	ResponseTimeMinutes *int        `json:"response_time_minutes"`
	Notes               []Note      `json:"notes"`
	Tags                []string    `json:"tags"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// Clone returns a deep copy so snapshots never alias live state.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	cp := *q
	if q.AssigneeID != nil {
		id := *q.AssigneeID
		cp.AssigneeID = &id
	}
	if q.ResolvedAt != nil {
		at := *q.ResolvedAt
		cp.ResolvedAt = &at
	}
	if q.ResponseTimeMinutes != nil {
		m := *q.ResponseTimeMinutes
		cp.ResponseTimeMinutes = &m
	}
	cp.Notes = slices.Clone(q.Notes)
	cp.Tags = slices.Clone(q.Tags)
	return &cp
}

// Assignee returns the assignee id or "".
func (q *Query) Assignee() string {
	if q.AssigneeID == nil {
		return ""
	}
	return *q.AssigneeID
}

// AddTags merges tags keeping set semantics and first-seen order.
func (q *Query) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" || slices.Contains(q.Tags, tag) {
			continue
		}
		q.Tags = append(q.Tags, tag)
	}
}
