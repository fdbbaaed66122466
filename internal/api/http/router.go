package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/api/http/handlers"
	"github.com/spec-kit/query-triage/internal/auth"
	"github.com/spec-kit/query-triage/internal/domain"
	"github.com/spec-kit/query-triage/internal/realtime"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Queries        *handlers.QueriesHandler
	Webhooks       *handlers.WebhooksHandler
	Categories     *handlers.CategoriesHandler
	Analytics      *handlers.AnalyticsHandler
	Operators      *handlers.OperatorsHandler
	AuthMiddleware *auth.AuthMiddleware

	// Gatherer serves /metrics when set.
	Gatherer prometheus.Gatherer
	// Gateway serves /ws when set.
	Gateway   *realtime.Gateway
	WSSession realtime.SessionOptions
	Logger    *zap.Logger
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	authn := cfg.AuthMiddleware.Handle
	adminOnly := auth.RequireRole(domain.OperatorRoleAdmin)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/me", authn, cfg.Auth.Me)

	// Intake stays public; everything else needs an operator.
	app.Post("/queries", cfg.Queries.Create)
	queries := app.Group("/queries", authn)
	queries.Get("", cfg.Queries.List)
	queries.Get("/:id", cfg.Queries.Get)
	queries.Put("/:id/assign", cfg.Queries.Assign)
	queries.Put("/:id/status", cfg.Queries.SetStatus)
	queries.Put("/:id/escalate", cfg.Queries.Escalate)
	queries.Put("/:id/priority", cfg.Queries.SetPriority)
	queries.Post("/:id/notes", cfg.Queries.AddNote)
	queries.Post("/:id/tags", cfg.Queries.AddTags)

	webhooks := app.Group("/webhooks")
	webhooks.Post("/email", cfg.Webhooks.Email)
	webhooks.Post("/twitter", cfg.Webhooks.Twitter)
	webhooks.Post("/facebook", cfg.Webhooks.Facebook)
	webhooks.Post("/chat", cfg.Webhooks.Chat)
	webhooks.Post("/generic", cfg.Webhooks.Generic)
	webhooks.Get("/test", cfg.Webhooks.Test)

	categories := app.Group("/categories", authn)
	categories.Get("", cfg.Categories.List)
	categories.Post("/classify", cfg.Categories.Classify)
	categories.Post("/reload", adminOnly, cfg.Categories.Reload)

	app.Get("/analytics/overview", authn, cfg.Analytics.Overview)
	app.Get("/analytics/team-performance", authn, cfg.Analytics.TeamPerformance)

	operators := app.Group("/operators", authn)
	operators.Get("", cfg.Operators.List)
	operators.Post("", adminOnly, cfg.Operators.Create)

	if cfg.Gateway != nil {
		app.Get("/ws", realtime.UpgradeRequired(), realtime.Handler(cfg.Gateway, cfg.WSSession, cfg.Logger))
	}
}
