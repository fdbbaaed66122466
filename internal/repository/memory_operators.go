package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/query-triage/internal/domain"
)

// MemoryOperators is an in-process OperatorRepository for dev and tests.
type MemoryOperators struct {
	mu        sync.RWMutex
	operators map[string]domain.Operator
}

// NewMemoryOperators seeds the directory with operators.
func NewMemoryOperators(operators ...domain.Operator) *MemoryOperators {
	m := &MemoryOperators{operators: make(map[string]domain.Operator, len(operators))}
	for _, op := range operators {
		m.operators[op.ID] = op
	}
	return m
}

func (m *MemoryOperators) Create(_ context.Context, operator *domain.Operator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if operator.ID == "" {
		operator.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	operator.Email = strings.ToLower(operator.Email)
	operator.CreatedAt, operator.UpdatedAt = now, now
	m.operators[operator.ID] = *operator
	return nil
}

func (m *MemoryOperators) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	op, ok := m.operators[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &op, nil
}

func (m *MemoryOperators) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, op := range m.operators {
		if op.Email == email {
			return &op, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryOperators) List(_ context.Context, filter OperatorFilter) ([]domain.Operator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []domain.Operator
	for _, op := range m.operators {
		if filter.Role != nil && op.Role != *filter.Role {
			continue
		}
		if filter.Department != nil && op.Department != *filter.Department {
			continue
		}
		if filter.Active != nil && op.Active != *filter.Active {
			continue
		}
		result = append(result, op)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset >= len(result) {
		return nil, nil
	}
	return result[offset:min(offset+limit, len(result))], nil
}
