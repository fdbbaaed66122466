package dto

import (
	"time"

	"github.com/spec-kit/query-triage/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateOperatorRequest payload.
type CreateOperatorRequest struct {
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Password   string              `json:"password"`
	Role       domain.OperatorRole `json:"role"`
	Department string              `json:"department"`
}

// OperatorResponse is the public view of an operator.
type OperatorResponse struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Role          domain.OperatorRole `json:"role"`
	Department    string              `json:"department,omitempty"`
	Active        bool                `json:"active"`
	ActiveQueries *int64              `json:"active_queries,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// TokenResponse returns an issued token.
type TokenResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Operator    OperatorResponse `json:"operator"`
}

// NewOperatorResponse maps a domain operator.
func NewOperatorResponse(op *domain.Operator) OperatorResponse {
	return OperatorResponse{
		ID:         op.ID,
		Name:       op.Name,
		Email:      op.Email,
		Role:       op.Role,
		Department: op.Department,
		Active:     op.Active,
		CreatedAt:  op.CreatedAt,
	}
}
