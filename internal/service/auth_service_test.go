package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

func TestOperatorCreateAndLogin(t *testing.T) {
	ctx := context.Background()
	ops := repository.NewMemoryOperators()
	store := repository.NewMemoryStore()
	operators := NewOperatorService(ops, store, bcrypt.MinCost)
	tokens := auth.NewTokenManager("secret", time.Hour)
	authSvc := NewAuthService(ops, tokens)

	created, err := operators.CreateOperator(ctx, OperatorCreateInput{
		Name: "Ada", Email: " Ada@Example.com ", Password: "correct-horse", Role: domain.OperatorRoleAgent,
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", created.Email)
	assert.NotEqual(t, "correct-horse", created.PasswordHash)

	_, err = operators.CreateOperator(ctx, OperatorCreateInput{
		Name: "Ada 2", Email: "ada@example.com", Password: "correct-horse", Role: domain.OperatorRoleAgent,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = operators.CreateOperator(ctx, OperatorCreateInput{Name: "x", Email: "bad", Password: "short", Role: "root"})
	require.Error(t, err)
	details := apperrors.ToDomainError(err).Details
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
	assert.Contains(t, details, "role")

	op, tok, err := authSvc.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "correct-horse"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, op.ID)
	claims, err := tokens.ParseToken(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.Subject)

	_, _, err = authSvc.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAuth))
	_, _, err = authSvc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "wrong"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAuth))

	require.NoError(t, store.IncrementLoad(ctx, created.ID, 2))
	list, err := operators.ListOperators(ctx, repository.OperatorFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].Load)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	ops := repository.NewMemoryOperators()
	operators := NewOperatorService(ops, nil, bcrypt.MinCost)

	created, err := operators.EnsureAdmin(ctx, "", "ignored")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = operators.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = operators.EnsureAdmin(ctx, "root@example.com", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)

	op, err := ops.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.OperatorRoleAdmin, op.Role)

	_, err = operators.EnsureAdmin(ctx, "other@example.com", "short")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestOperatorTeamPerformance(t *testing.T) {
	ctx := context.Background()
	ops := repository.NewMemoryOperators(
		domain.Operator{ID: "op-1", Name: "Ada", Email: "ada@example.com", Department: "billing", Active: true},
		domain.Operator{ID: "op-2", Name: "Bo", Email: "bo@example.com", Active: true},
	)
	store := repository.NewMemoryStore()
	file := func(id, assignee string, status domain.QueryStatus, minutes int) {
		q := &domain.Query{ID: id, Status: status, AssigneeID: &assignee, CreatedAt: time.Now()}
		q.ResponseTimeMinutes = &minutes
		_, err := store.CreateQuery(ctx, q)
		require.NoError(t, err)
	}
	file("q1", "op-1", domain.QueryStatusResolved, 10)
	file("q2", "op-1", domain.QueryStatusClosed, 11)
	file("q3", "op-1", domain.QueryStatusInProgress, 12)
	file("q4", "op-2", domain.QueryStatusResolved, 7)
	file("q5", "gone", domain.QueryStatusResolved, 1)
	file("q6", "gone", domain.QueryStatusResolved, 1)
	file("q7", "gone", domain.QueryStatusResolved, 1)
	file("q8", "gone", domain.QueryStatusResolved, 1)

	perf, err := NewOperatorService(ops, store, bcrypt.MinCost).TeamPerformance(ctx)
	require.NoError(t, err)
	require.Len(t, perf, 2)

	assert.Equal(t, "op-1", perf[0].ID)
	assert.Equal(t, "Ada", perf[0].Name)
	assert.Equal(t, "billing", perf[0].Department)
	assert.EqualValues(t, 3, perf[0].TotalAssigned)
	assert.EqualValues(t, 1, perf[0].Resolved)
	assert.Equal(t, 33.33, perf[0].ResolutionRate)
	require.NotNil(t, perf[0].AvgResponseMinutes)
	assert.Equal(t, 11.0, *perf[0].AvgResponseMinutes)

	assert.Equal(t, "op-2", perf[1].ID)
	assert.Equal(t, 100.0, perf[1].ResolutionRate)

	empty, err := NewOperatorService(ops, nil, bcrypt.MinCost).TeamPerformance(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
