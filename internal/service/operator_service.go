package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// OperatorService manages the operator directory.
type OperatorService struct {
	operators  repository.OperatorRepository
	store      repository.Store
	bcryptCost int
}

// NewOperatorService constructs the service. store may be nil, in which case
// loads report zero and team performance is empty.
func NewOperatorService(operators repository.OperatorRepository, store repository.Store, bcryptCost int) *OperatorService {
	return &OperatorService{operators: operators, store: store, bcryptCost: bcryptCost}
}

// OperatorCreateInput describes a new operator.
type OperatorCreateInput struct {
	Name       string              `json:"name" validate:"required,max=200"`
	Email      string              `json:"email" validate:"required,email"`
	Password   string              `json:"password" validate:"required,min=8"`
	Role       domain.OperatorRole `json:"role" validate:"required,oneof=agent admin"`
	Department string              `json:"department" validate:"max=200"`
}

// OperatorPerformance summarises one operator's assigned queries.
type OperatorPerformance struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Email              string   `json:"email"`
	Department         string   `json:"department"`
	TotalAssigned      int64    `json:"total_assigned"`
	Resolved           int64    `json:"resolved"`
	AvgResponseMinutes *float64 `json:"avg_response_minutes"`
	ResolutionRate     float64  `json:"resolution_rate"`
}

// OperatorWithLoad pairs an operator with its open-query count.
type OperatorWithLoad struct {
	Operator domain.Operator
	Load     int64
}

// CreateOperator registers an operator with a hashed password.
func (s *OperatorService) CreateOperator(ctx context.Context, input OperatorCreateInput) (*domain.Operator, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct("invalid operator payload", input); err != nil {
		return nil, err
	}

	if _, err := s.operators.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NewStoreError("get operator", err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	operator := &domain.Operator{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Department:   strings.TrimSpace(input.Department),
		Active:       true,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, apperrors.NewStoreError("create operator", err)
	}
	return operator, nil
}

// ListOperators returns operators with their current load.
func (s *OperatorService) ListOperators(ctx context.Context, filter repository.OperatorFilter) ([]OperatorWithLoad, error) {
	operators, err := s.operators.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewStoreError("list operators", err)
	}
	out := make([]OperatorWithLoad, 0, len(operators))
	for _, op := range operators {
		entry := OperatorWithLoad{Operator: op}
		if s.store != nil {
			load, err := s.store.Load(ctx, op.ID)
			if err != nil {
				return nil, apperrors.NewStoreError("load", err)
			}
			entry.Load = load
		}
		out = append(out, entry)
	}
	return out, nil
}

// EnsureAdmin creates an admin with the given credentials unless an operator
// with that email already exists. It reports whether one was created.
func (s *OperatorService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if strings.TrimSpace(email) == "" {
		return false, nil
	}
	_, err := s.CreateOperator(ctx, OperatorCreateInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.OperatorRoleAdmin,
	})
	if apperrors.IsCode(err, apperrors.CodeConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TeamPerformance reports per-operator resolution statistics ordered by
// assigned count. Assignees that no longer resolve to an operator are left out.
func (s *OperatorService) TeamPerformance(ctx context.Context) ([]OperatorPerformance, error) {
	if s.store == nil {
		return []OperatorPerformance{}, nil
	}
	stats, err := s.store.TeamPerformance(ctx)
	if err != nil {
		return nil, apperrors.NewStoreError("team performance", err)
	}
	out := make([]OperatorPerformance, 0, len(stats))
	for _, st := range stats {
		op, err := s.operators.GetByID(ctx, st.AssigneeID)
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, apperrors.NewStoreError("get operator", err)
		}
		entry := OperatorPerformance{
			ID:            op.ID,
			Name:          op.Name,
			Email:         op.Email,
			Department:    op.Department,
			TotalAssigned: st.TotalAssigned,
			Resolved:      st.Resolved,
		}
		if st.AvgResponseMinutes != nil {
			avg := round2(*st.AvgResponseMinutes)
			entry.AvgResponseMinutes = &avg
		}
		if st.TotalAssigned > 0 {
			entry.ResolutionRate = round2(float64(st.Resolved) / float64(st.TotalAssigned) * 100)
		}
		out = append(out, entry)
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
