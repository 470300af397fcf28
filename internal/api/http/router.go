package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/ticket-tracker/internal/api/http/handlers"
	"github.com/spec-kit/ticket-tracker/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Auth    *handlers.AuthHandler
	Tickets *handlers.TicketsHandler
	Admin   *handlers.AdminTicketsHandler
	Modes   ModeReader
	// Registry is optional; without it /metrics is not mounted.
	Registry *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	app.Get("/app/mode", cfg.Auth.Mode)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/logout", cfg.Auth.Logout)

	client := app.Group("/tickets")
	client.Post("", RequireMode(cfg.Modes, auth.PermSubmitTicket), cfg.Tickets.CreateTicket)
	client.Get("/mine", RequireMode(cfg.Modes, auth.PermViewOwnTickets), cfg.Tickets.ListTickets)
	client.Post("/mine/refresh", RequireMode(cfg.Modes, auth.PermViewOwnTickets), cfg.Tickets.RefreshTickets)

	admin := app.Group("/admin", RequireMode(cfg.Modes, auth.PermViewAllTickets))
	admin.Get("/tickets", cfg.Admin.ListTickets)
	admin.Post("/tickets/refresh", cfg.Admin.RefreshTickets)
	admin.Get("/tickets/:id", cfg.Admin.GetTicket)
	admin.Patch("/tickets/:id/status", RequireMode(cfg.Modes, auth.PermChangeStatus), cfg.Admin.UpdateStatus)
}
