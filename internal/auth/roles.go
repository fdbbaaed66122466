package auth

import (
	"slices"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/domain"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// RequireRole ensures the operator has one of the allowed roles. With no
// roles any authenticated operator passes.
func RequireRole(allowed ...domain.OperatorRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		operator, ok := OperatorFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if len(allowed) > 0 && !slices.Contains(allowed, operator.Role) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
