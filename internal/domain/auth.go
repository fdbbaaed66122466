package domain

import "time"

// Token describes an issued operator access token.
type Token struct {
	Value      string
	OperatorID string
	Role       OperatorRole
	ExpiresAt  time.Time
}
