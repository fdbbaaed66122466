package repository

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spec-kit/query-triage/internal/domain"
)

// MemoryStore holds queries and recipient loads in memory. Suitable for dev
// and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	queries map[string]*domain.Query
	loads   map[string]int64
}

// NewMemoryStore initializes an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		queries: make(map[string]*domain.Query),
		loads:   make(map[string]int64),
	}
}

// CreateQuery stores a copy of query.
func (s *MemoryStore) CreateQuery(_ context.Context, query *domain.Query) (*domain.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := query.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = cp.CreatedAt
	}
	s.queries[cp.ID] = cp
	return cp.Clone(), nil
}

// GetQuery returns a copy of the stored query.
func (s *MemoryStore) GetQuery(_ context.Context, id string) (*domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return q.Clone(), nil
}

// UpdateQuery applies mutate to a working copy and commits it only when the
// mutator succeeds.
func (s *MemoryStore) UpdateQuery(_ context.Context, id string, mutate QueryMutator) (*domain.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queries[id]
	if !ok {
		return nil, ErrNotFound
	}
	working := q.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now().UTC()
	s.queries[id] = working
	return working.Clone(), nil
}

// ListQueries filters and orders by priority then recency.
func (s *MemoryStore) ListQueries(_ context.Context, filter QueryFilter) ([]domain.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Query
	for _, q := range s.queries {
		if matchesFilter(q, filter) {
			result = append(result, *q.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Priority != result[j].Priority {
			return result[i].Priority > result[j].Priority
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(result) {
		return []domain.Query{}, nil
	}
	end := min(offset+limit, len(result))
	return result[offset:end], nil
}

func matchesFilter(q *domain.Query, f QueryFilter) bool {
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, q.Status) {
		return false
	}
	if len(f.Categories) > 0 && !slices.Contains(f.Categories, q.Category) {
		return false
	}
	if len(f.Channels) > 0 && !slices.Contains(f.Channels, q.Channel) {
		return false
	}
	if f.Priority != nil && q.Priority != *f.Priority {
		return false
	}
	if f.AssigneeID != nil && q.Assignee() != *f.AssigneeID {
		return false
	}
	if f.AssignedOrNil != nil && q.AssigneeID != nil && *q.AssigneeID != *f.AssignedOrNil {
		return false
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" && !containsAny(term, q.Subject, q.Body, q.CustomerName, q.CustomerContact) {
			return false
		}
	}
	return true
}

func containsAny(term string, fields ...string) bool {
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Overview aggregates the stored queries.
func (s *MemoryStore) Overview(_ context.Context) (*Overview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ov := newOverview()
	var sum, n int
	for _, q := range s.queries {
		ov.Total++
		ov.ByStatus[q.Status]++
		ov.ByCategory[q.Category]++
		ov.ByPriority[q.Priority]++
		ov.ByChannel[q.Channel]++
		if q.IsEscalated {
			ov.Escalated++
		}
		if q.ResponseTimeMinutes == nil {
			continue
		}
		m := *q.ResponseTimeMinutes
		if ov.ResponseTime == nil {
			ov.ResponseTime = &ResponseTimeStats{MinMinutes: m, MaxMinutes: m}
		}
		ov.ResponseTime.MinMinutes = min(ov.ResponseTime.MinMinutes, m)
		ov.ResponseTime.MaxMinutes = max(ov.ResponseTime.MaxMinutes, m)
		sum += m
		n++
	}
	if n > 0 {
		ov.ResponseTime.AvgMinutes = float64(sum) / float64(n)
	}
	return ov, nil
}

// TeamPerformance groups assigned queries by assignee. Only the resolved
// status counts as resolved.
func (s *MemoryStore) TeamPerformance(_ context.Context) ([]AssigneeStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type acc struct {
		stats AssigneeStats
		sum   int
		n     int
	}
	byAssignee := map[string]*acc{}
	for _, q := range s.queries {
		id := q.Assignee()
		if id == "" {
			continue
		}
		a, ok := byAssignee[id]
		if !ok {
			a = &acc{stats: AssigneeStats{AssigneeID: id}}
			byAssignee[id] = a
		}
		a.stats.TotalAssigned++
		if q.Status == domain.QueryStatusResolved {
			a.stats.Resolved++
		}
		if q.ResponseTimeMinutes != nil {
			a.sum += *q.ResponseTimeMinutes
			a.n++
		}
	}

	out := make([]AssigneeStats, 0, len(byAssignee))
	for _, a := range byAssignee {
		if a.n > 0 {
			avg := float64(a.sum) / float64(a.n)
			a.stats.AvgResponseMinutes = &avg
		}
		out = append(out, a.stats)
	}
	sortAssigneeStats(out)
	return out, nil
}

// IncrementLoad adjusts a recipient's active-load counter.
func (s *MemoryStore) IncrementLoad(_ context.Context, recipientID string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads[recipientID] += delta
	return nil
}

// Load returns a recipient's active-load counter.
func (s *MemoryStore) Load(_ context.Context, recipientID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads[recipientID], nil
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
