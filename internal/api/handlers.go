// Package api exposes the run status surface: a health probe and live
// progress counters for the acquisition engine.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/corpusworks/harvester/internal/acquisition/engine"
)

// Handlers contains the HTTP handlers for the status API
type Handlers struct {
	engine  *engine.Engine
	version string
}

// NewHandlers creates a new handlers instance
func NewHandlers(e *engine.Engine, version string) *Handlers {
	return &Handlers{engine: e, version: version}
}

// Health returns the service health status
func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"service":   "harvester",
		"version":   h.version,
		"timestamp": time.Now().UTC(),
	})
}

// Metrics returns the live counters of the current acquisition run
func (h *Handlers) Metrics(c *fiber.Ctx) error {
	snap := h.engine.Snapshot()
	return c.JSON(fiber.Map{
		"run_id":    snap.RunID,
		"phase":     snap.Phase,
		"extracted": snap.Extracted,
		"denied":    snap.Denied,
		"succeeded": snap.Succeeded,
		"failed":    snap.Failed,
	})
}

// SetupRoutes registers the status endpoints on app
func SetupRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", h.Health)
	app.Get("/metrics", h.Metrics)
}
