package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/query-triage/internal/api/dto"
	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/observability"
	apperrors "github.com/spec-kit/query-triage/pkg/util/errorutil"
)

// CategoriesHandler exposes the active category catalog.
type CategoriesHandler struct {
	classifier *classifier.Classifier
	reloader   *classifier.Reloader
	metrics    *observability.Metrics
}

// NewCategoriesHandler constructs handler. A nil reloader disables reload.
func NewCategoriesHandler(c *classifier.Classifier, reloader *classifier.Reloader, metrics *observability.Metrics) *CategoriesHandler {
	return &CategoriesHandler{classifier: c, reloader: reloader, metrics: metrics}
}

// List GET /categories.
func (h *CategoriesHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": catalogResponse(h.classifier.Catalog())})
}

// Reload POST /categories/reload.
func (h *CategoriesHandler) Reload(c *fiber.Ctx) error {
	if h.reloader == nil {
		return apperrors.NewConflict("no catalog file configured", nil)
	}
	catalog, err := h.reloader.Reload()
	h.metrics.RecordCatalogReload(err == nil)
	if err != nil {
		return apperrors.NewValidationError("catalog reload failed", map[string]any{"reason": err.Error()})
	}
	return c.JSON(fiber.Map{"data": catalogResponse(catalog)})
}

// Classify POST /categories/classify previews how a message would be filed.
func (h *CategoriesHandler) Classify(c *fiber.Ctx) error {
	var req dto.ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result := h.classifier.Classify(req.Subject, req.Body)
	return c.JSON(fiber.Map{"data": dto.ClassifyResponse{Category: result.Category, Priority: result.Priority}})
}

func catalogResponse(catalog *classifier.Catalog) dto.CatalogResponse {
	return dto.CatalogResponse{
		UrgentKeywords: catalog.UrgentKeywords(),
		Categories:     catalog.Categories(),
	}
}
