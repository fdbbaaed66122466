package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/api/dto"
	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/service"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// AuthHandler exposes operator login.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	operator, token, err := h.service.Login(c.UserContext(), service.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TokenResponse{
		AccessToken: token.Value,
		TokenType:   "Bearer",
		ExpiresAt:   token.ExpiresAt,
		Operator:    dto.NewOperatorResponse(operator),
	}})
}

// Me GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	operator, ok := auth.OperatorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	return c.JSON(fiber.Map{"data": dto.NewOperatorResponse(operator)})
}
