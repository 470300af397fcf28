package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-tracker/internal/persistence"
)

const readinessTimeout = 2 * time.Second

// HealthHandler responds to liveness and readiness probes.
type HealthHandler struct {
	serviceName  string
	version      string
	backend      string
	dependencies []persistence.Dependency
}

// NewHealthHandler returns a handler probing deps on readiness. A nil or
// disabled dependency is reported as "disabled" and does not fail readiness.
func NewHealthHandler(serviceName, version, backend string, deps ...persistence.Dependency) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, backend: backend, dependencies: deps}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
		"backend": h.backend,
	})
}

// Ready pings every enabled dependency.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	statuses := fiber.Map{}
	ready := true
	for _, dep := range h.dependencies {
		if dep == nil || !dep.Enabled() {
			if dep != nil {
				statuses[dep.Name()] = "disabled"
			}
			continue
		}
		if err := dep.Ping(ctx); err != nil {
			statuses[dep.Name()] = err.Error()
			ready = false
			continue
		}
		statuses[dep.Name()] = "ok"
	}

	if ready {
		return c.JSON(fiber.Map{
			"status":       "ready",
			"backend":      h.backend,
			"dependencies": statuses,
		})
	}
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "DEPENDENCY_UNAVAILABLE",
			"message": "one or more dependencies unavailable",
			"details": statuses,
		},
	})
}
