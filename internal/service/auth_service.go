package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// AuthService coordinates operator login.
type AuthService struct {
	operators repository.OperatorRepository
	tokenMgr  *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(operators repository.OperatorRepository, tokens *auth.TokenManager) *AuthService {
	return &AuthService{operators: operators, tokenMgr: tokens}
}

// LoginInput carries operator credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.Operator, *domain.Token, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := validateStruct("invalid login payload", input); err != nil {
		return nil, nil, err
	}

	operator, err := s.operators.GetByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, nil, apperrors.NewStoreError("get operator", err)
	}
	if !auth.CheckPassword(operator.PasswordHash, input.Password) {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !operator.Active {
		return nil, nil, apperrors.NewForbidden("operator inactive")
	}

	token, err := s.tokenMgr.GenerateToken(operator)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return operator, token, nil
}
