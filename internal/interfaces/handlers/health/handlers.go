package health

import (
	healthsvc "sacco-backend/internal/application/health"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for health endpoints.
type Handlers struct {
	Service        *healthsvc.Service
	HealthAdminKey string
}

// Reset clears health stats in Redis. Requires query key=HEALTH_ADMIN_KEY.
func (h *Handlers) Reset(c *fiber.Ctx) error {
	key := c.Query("key")
	if key == "" || key != h.HealthAdminKey {
		return response.Error(c, "Unauthorized", fiber.StatusForbidden, nil)
	}
	if err := h.Service.Reset(c.UserContext()); err != nil {
		log.Error().Err(err).Msg("health reset failed")
		return response.Error(c, "Failed to reset stats", fiber.StatusInternalServerError, nil)
	}
	return response.Success(c, "Stats reset successfully", fiber.Map{"success": true}, nil)
}

// JSON returns service status, runtime, traffic, dependencies and backlog.
func (h *Handlers) JSON(c *fiber.Ctx) error {
	result := h.Service.Collect(c.UserContext())
	return c.JSON(fiber.Map{
		"service":      "sacco-api",
		"status":       result.Status,
		"runtime":      result.Runtime,
		"traffic":      result.Traffic,
		"dependencies": result.Dependencies,
		"backlog":      result.Backlog,
	})
}

// Errors returns the most recent server error entries.
func (h *Handlers) Errors(c *fiber.Ctx) error {
	entries, err := h.Service.Errors(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON([]interface{}{})
	}
	return c.JSON(entries)
}
