package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-tickets/internal/api/http/handlers"
	"github.com/spec-kit/guild-tickets/internal/auth"
	"github.com/spec-kit/guild-tickets/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Intents        *handlers.IntentsHandler
	Workspaces     *handlers.WorkspacesHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/gateway/token", cfg.Auth.GatewayToken)

	v1 := app.Group("/v1", cfg.AuthMiddleware.Handle)
	v1.Post("/intents", auth.RequireGateway(), cfg.Intents.Submit)

	readers := auth.RequireSubject(domain.SubjectTypeGateway, domain.SubjectTypeOperator)
	v1.Get("/metrics", readers, cfg.Metrics.Snapshot)

	dashboards := v1.Group("/workspaces", readers)
	dashboards.Get("/:id/stats", cfg.Workspaces.Stats)
	dashboards.Get("/:id/tickets/:ticketId", cfg.Workspaces.Ticket)
}
