package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kinetix/ima-backend/internal/api/http/handlers"
	"github.com/kinetix/ima-backend/internal/auth"
	"github.com/kinetix/ima-backend/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Incidents      *handlers.IncidentsHandler
	Workflow       *handlers.WorkflowHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/internal/metrics", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.UserRoleAdmin), cfg.Health.Metrics)

	api := app.Group("/api")
	api.Post("/auth/login", cfg.Auth.Login)

	protected := api.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())
	protected.Get("/auth/me", cfg.Auth.Me)

	protected.Get("/workflow", cfg.Workflow.Graph)
	protected.Get("/dashboard/stats", cfg.Workflow.DashboardStats)

	incidents := protected.Group("/incidentes")
	incidents.Get("/", cfg.Incidents.ListIncidents)
	incidents.Post("/", cfg.Incidents.CreateIncident)
	incidents.Get("/:id", cfg.Incidents.GetIncident)
	incidents.Patch("/:id", cfg.Incidents.UpdateIncident)
	incidents.Patch("/:id/estado", cfg.Incidents.ChangeState)
	incidents.Get("/:id/transiciones", cfg.Incidents.ListTransitions)

	app.Use(notFoundHandler)
}
