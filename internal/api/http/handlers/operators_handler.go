package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/api/dto"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	"github.com/spec-kit/query-triage/internal/service"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// OperatorsHandler manages the operator directory.
type OperatorsHandler struct {
	service *service.OperatorService
}

// NewOperatorsHandler constructs handler.
func NewOperatorsHandler(operatorService *service.OperatorService) *OperatorsHandler {
	return &OperatorsHandler{service: operatorService}
}

// Create POST /operators.
func (h *OperatorsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateOperatorRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	operator, err := h.service.CreateOperator(c.UserContext(), service.OperatorCreateInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		Department: req.Department,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewOperatorResponse(operator)})
}

// List GET /operators.
func (h *OperatorsHandler) List(c *fiber.Ctx) error {
	filter := repository.OperatorFilter{
		Limit:  c.QueryInt("limit", 100),
		Offset: c.QueryInt("offset", 0),
	}
	if v := c.Query("role"); v != "" {
		role := domain.OperatorRole(v)
		filter.Role = &role
	}
	if v := c.Query("department"); v != "" {
		filter.Department = &v
	}
	if v := c.Query("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return apperrors.NewValidationError("invalid filter", map[string]any{"active": v})
		}
		filter.Active = &active
	}

	operators, err := h.service.ListOperators(c.UserContext(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.OperatorResponse, 0, len(operators))
	for i := range operators {
		resp := dto.NewOperatorResponse(&operators[i].Operator)
		load := operators[i].Load
		resp.ActiveQueries = &load
		items = append(items, resp)
	}
	return c.JSON(fiber.Map{"data": items})
}
