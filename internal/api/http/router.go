package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/medbook/support-engine/internal/api/http/handlers"
	"github.com/medbook/support-engine/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	AdminTickets   *handlers.AdminTicketsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)

	support := tickets.Group("", auth.RequireSupport())
	support.Get("/admin/stats", cfg.AdminTickets.Stats)

	super := tickets.Group("", auth.RequireSuperAdmin())
	super.Post("/escalate", cfg.AdminTickets.TriggerEscalation)
	super.Post("/admin/close-inactive", cfg.AdminTickets.CloseInactive)

	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)

	support.Put("/:id", cfg.AdminTickets.UpdateTicket)
	support.Patch("/:id/status", cfg.AdminTickets.UpdateStatus)
	support.Post("/:id/assign", cfg.AdminTickets.AssignTicket)
}
