package middleware

import (
	"strings"

	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// CORSConfig holds CORS configuration (suffix + dev password).
type CORSConfig struct {
	AllowedSuffix string
	DevPassword   string
}

const devPasswordHeader = "dev-password"

// CORS allows origins ending with AllowedSuffix, localhost preflights, and
// requests carrying the dev-password header. Credentials allowed.
func CORS(cfg CORSConfig) fiber.Handler {
	suffix := strings.ToLower(cfg.AllowedSuffix)
	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		if origin == "" {
			return c.Next()
		}
		allowed := isLocalOrigin(origin) && c.Method() == fiber.MethodOptions
		if suffix != "" && strings.HasSuffix(strings.ToLower(origin), suffix) {
			allowed = true
		}
		if cfg.DevPassword != "" && c.Get(devPasswordHeader) == cfg.DevPassword {
			allowed = true
		}
		if !allowed {
			return response.Error(c, "Not allowed by CORS", fiber.StatusForbidden, nil)
		}
		setCORSHeaders(c, origin)
		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

func isLocalOrigin(origin string) bool {
	return strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:")
}

func setCORSHeaders(c *fiber.Ctx, origin string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, "+devPasswordHeader+", "+traceIDHeader)
	c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	c.Set(fiber.HeaderAccessControlExposeHeaders, traceIDHeader)
}
