package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/api/dto"
	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/repository"
	"github.com/spec-kit/query-triage/internal/service"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// QueriesHandler exposes the query lifecycle over HTTP.
type QueriesHandler struct {
	lifecycle *service.LifecycleService
}

// NewQueriesHandler constructs handler.
func NewQueriesHandler(lifecycle *service.LifecycleService) *QueriesHandler {
	return &QueriesHandler{lifecycle: lifecycle}
}

// Create POST /queries.
func (h *QueriesHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateQueryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.CreateQuery(c.UserContext(), domain.IncomingMessage{
		Subject:       req.Subject,
		Body:          req.Body,
		Channel:       req.Channel,
		SenderName:    req.CustomerName,
		SenderContact: req.CustomerContact,
		Tags:          req.Tags,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": query})
}

// List GET /queries. Agents only see their own and unassigned queries.
func (h *QueriesHandler) List(c *fiber.Ctx) error {
	operator, ok := auth.OperatorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	filter, err := parseQueryFilter(c)
	if err != nil {
		return err
	}
	if operator.Role == domain.OperatorRoleAgent {
		filter.AssignedOrNil = &operator.ID
	}
	queries, err := h.lifecycle.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(dto.QueryListResponse{Count: len(queries), Data: queries})
}

// Get GET /queries/:id.
func (h *QueriesHandler) Get(c *fiber.Ctx) error {
	query, err := h.lifecycle.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

// Assign PUT /queries/:id/assign.
func (h *QueriesHandler) Assign(c *fiber.Ctx) error {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.Assign(c.UserContext(), c.Params("id"), req.AssigneeID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

// SetStatus PUT /queries/:id/status.
func (h *QueriesHandler) SetStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.SetStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

// Escalate PUT /queries/:id/escalate.
func (h *QueriesHandler) Escalate(c *fiber.Ctx) error {
	query, err := h.lifecycle.Escalate(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

// SetPriority PUT /queries/:id/priority.
func (h *QueriesHandler) SetPriority(c *fiber.Ctx) error {
	var req dto.PriorityRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.SetPriority(c.UserContext(), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

// AddNote POST /queries/:id/notes. The author is the calling operator.
func (h *QueriesHandler) AddNote(c *fiber.Ctx) error {
	operator, ok := auth.OperatorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("operator required")
	}
	var req dto.NoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.AddNote(c.UserContext(), c.Params("id"), req.Text, operator.ID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": query})
}

// AddTags POST /queries/:id/tags.
func (h *QueriesHandler) AddTags(c *fiber.Ctx) error {
	var req dto.TagsRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	query, err := h.lifecycle.AddTags(c.UserContext(), c.Params("id"), req.Tags...)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": query})
}

func parseQueryFilter(c *fiber.Ctx) (repository.QueryFilter, error) {
	var filter repository.QueryFilter
	invalid := map[string]any{}

	for _, v := range splitCSV(c.Query("status")) {
		s := domain.QueryStatus(v)
		if !s.Valid() {
			invalid["status"] = v
			continue
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	for _, v := range splitCSV(c.Query("category")) {
		filter.Categories = append(filter.Categories, domain.Category(v))
	}
	channels := c.Query("channel", c.Query("source"))
	for _, v := range splitCSV(channels) {
		ch := domain.Channel(v)
		if !ch.Valid() {
			invalid["channel"] = v
			continue
		}
		filter.Channels = append(filter.Channels, ch)
	}
	if raw := c.Query("priority"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil || p < domain.MinPriority || p > domain.MaxPriority {
			invalid["priority"] = raw
		} else {
			filter.Priority = &p
		}
	}
	if v := strings.TrimSpace(c.Query("assignee")); v != "" {
		filter.AssigneeID = &v
	}
	if v := strings.TrimSpace(c.Query("search")); v != "" {
		filter.SearchTerm = &v
	}
	filter.Limit = c.QueryInt("limit", 100)
	filter.Offset = c.QueryInt("offset", 0)
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	if len(invalid) > 0 {
		return filter, apperrors.NewValidationError("invalid filter", invalid)
	}
	return filter, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
