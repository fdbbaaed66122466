package domain

import "time"

// OperatorRole enumerates internal operator roles.
type OperatorRole string

const (
	OperatorRoleAgent OperatorRole = "agent"
	OperatorRoleAdmin OperatorRole = "admin"
)

// Operator is a support team member. Operators are the recipients of
// real-time notifications and the assignees of queries.
type Operator struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	Department   string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
