package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/spec-kit/query-triage/internal/domain"
)

// ErrNotFound is returned when an id does not resolve.
var ErrNotFound = errors.New("not found")

// QueryMutator edits a query in place inside UpdateQuery. Returning an error
// aborts the update and nothing is written.
type QueryMutator func(q *domain.Query) error

// QueryFilter captures listing parameters.
type QueryFilter struct {
	Statuses      []domain.QueryStatus
	Categories    []domain.Category
	Channels      []domain.Channel
	Priority      *int
	AssigneeID    *string
	AssignedOrNil *string
	SearchTerm    *string
	Limit         int
	Offset        int
}

// QueryRepository persists queries. Implementations return copies; callers
// never share memory with stored state.
type QueryRepository interface {
	CreateQuery(ctx context.Context, query *domain.Query) (*domain.Query, error)
	GetQuery(ctx context.Context, id string) (*domain.Query, error)
	UpdateQuery(ctx context.Context, id string, mutate QueryMutator) (*domain.Query, error)
	ListQueries(ctx context.Context, filter QueryFilter) ([]domain.Query, error)
	Overview(ctx context.Context) (*Overview, error)
	TeamPerformance(ctx context.Context) ([]AssigneeStats, error)
}

// LoadCounter tracks how many open queries each recipient holds. Increments
// are atomic with respect to each other.
type LoadCounter interface {
	IncrementLoad(ctx context.Context, recipientID string, delta int64) error
	Load(ctx context.Context, recipientID string) (int64, error)
}

// Store is the persistence boundary of the lifecycle engine.
type Store interface {
	QueryRepository
	LoadCounter
}

type composite struct {
	QueryRepository
	LoadCounter
}

// NewStore combines a query repository with a load counter.
func NewStore(queries QueryRepository, loads LoadCounter) Store {
	return composite{QueryRepository: queries, LoadCounter: loads}
}

// Overview aggregates queue statistics.
type Overview struct {
	Total        int64                        `json:"total"`
	ByStatus     map[domain.QueryStatus]int64 `json:"by_status"`
	ByCategory   map[domain.Category]int64    `json:"by_category"`
	ByPriority   map[int]int64                `json:"by_priority"`
	ByChannel    map[domain.Channel]int64     `json:"by_channel"`
	Escalated    int64                        `json:"escalated"`
	ResponseTime *ResponseTimeStats           `json:"response_time,omitempty"`
	GeneratedAt  time.Time                    `json:"generated_at"`
}

// ResponseTimeStats summarizes responseTimeMinutes over resolved queries.
type ResponseTimeStats struct {
	AvgMinutes float64 `json:"avg_minutes"`
	MinMinutes int     `json:"min_minutes"`
	MaxMinutes int     `json:"max_minutes"`
}

func newOverview() *Overview {
	return &Overview{
		ByStatus:    map[domain.QueryStatus]int64{},
		ByCategory:  map[domain.Category]int64{},
		ByPriority:  map[int]int64{},
		ByChannel:   map[domain.Channel]int64{},
		GeneratedAt: time.Now().UTC(),
	}
}

// AssigneeStats aggregates the queries currently held by one assignee.
// AvgResponseMinutes is nil when none of them has a response time yet.
type AssigneeStats struct {
	AssigneeID         string
	TotalAssigned      int64
	Resolved           int64
	AvgResponseMinutes *float64
}

func sortAssigneeStats(stats []AssigneeStats) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalAssigned != stats[j].TotalAssigned {
			return stats[i].TotalAssigned > stats[j].TotalAssigned
		}
		return stats[i].AssigneeID < stats[j].AssigneeID
	})
}
