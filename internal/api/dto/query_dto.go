package dto

import (
	"time"

	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/domain"
)

// CreateQueryRequest payload for POST /queries.
type CreateQueryRequest struct {
	Subject         string         `json:"subject"`
	Body            string         `json:"body"`
	Channel         domain.Channel `json:"channel"`
	CustomerName    string         `json:"customer_name"`
	CustomerContact string         `json:"customer_contact"`
	Tags            []string       `json:"tags"`
}

// AssignRequest payload; an empty assignee clears the assignment.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// StatusRequest payload.
type StatusRequest struct {
	Status domain.QueryStatus `json:"status"`
}

// PriorityRequest payload.
type PriorityRequest struct {
	Priority int `json:"priority"`
}

// NoteRequest payload.
type NoteRequest struct {
	Text string `json:"text"`
}

// TagsRequest payload.
type TagsRequest struct {
	Tags []string `json:"tags"`
}

// QueryListResponse wraps listing results.
type QueryListResponse struct {
	Count int            `json:"count"`
	Data  []domain.Query `json:"data"`
}

// CatalogResponse describes the active catalog.
type CatalogResponse struct {
	UrgentKeywords []string                    `json:"urgent_keywords"`
	Categories     []classifier.CategoryConfig `json:"categories"`
}

// ClassifyRequest asks for a classification preview.
type ClassifyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ClassifyResponse previews a classification.
type ClassifyResponse struct {
	Category domain.Category `json:"category"`
	Priority int             `json:"priority"`
}

// WebhookInfoResponse lists webhook endpoints.
type WebhookInfoResponse struct {
	Message           string    `json:"message"`
	Timestamp         time.Time `json:"timestamp"`
	AvailableWebhooks []string  `json:"available_webhooks"`
}
