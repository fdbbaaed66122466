package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/service"
)

// AnalyticsHandler reports queue statistics.
type AnalyticsHandler struct {
	lifecycle *service.LifecycleService
	operators *service.OperatorService
}

// NewAnalyticsHandler constructs handler.
func NewAnalyticsHandler(lifecycle *service.LifecycleService, operators *service.OperatorService) *AnalyticsHandler {
	return &AnalyticsHandler{lifecycle: lifecycle, operators: operators}
}

// Overview GET /analytics/overview.
func (h *AnalyticsHandler) Overview(c *fiber.Ctx) error {
	overview, err := h.lifecycle.Overview(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": overview})
}

// TeamPerformance GET /analytics/team-performance.
func (h *AnalyticsHandler) TeamPerformance(c *fiber.Ctx) error {
	perf, err := h.operators.TeamPerformance(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": perf})
}
