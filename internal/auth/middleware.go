package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

const operatorKey = "auth_operator"

// AuthMiddleware validates bearer tokens and loads the calling operator.
type AuthMiddleware struct {
	tokens    *TokenManager
	operators repository.OperatorRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, operators repository.OperatorRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	operator, err := m.resolve(c.UserContext(), parts[1])
	if err != nil {
		return err
	}
	c.Locals(operatorKey, operator)
	return c.Next()
}

// VerifyRecipient resolves a session credential to an active operator id.
func (m *AuthMiddleware) VerifyRecipient(ctx context.Context, token string) (string, error) {
	operator, err := m.resolve(ctx, token)
	if err != nil {
		return "", err
	}
	return operator.ID, nil
}

func (m *AuthMiddleware) resolve(ctx context.Context, token string) (*domain.Operator, error) {
	claims, err := m.tokens.ParseToken(strings.TrimSpace(token))
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	operator, err := m.operators.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("operator not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !operator.Active {
		return nil, apperrors.NewUnauthorized("operator inactive")
	}
	return operator, nil
}

// OperatorFromContext retrieves the authenticated operator.
func OperatorFromContext(c *fiber.Ctx) (*domain.Operator, bool) {
	operator, ok := c.Locals(operatorKey).(*domain.Operator)
	return operator, ok && operator != nil
}
