package middleware

import (
	"sacco-backend/internal/constants"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// AuthorizePermission checks the session user's role against constants.PermissionRoles.
// Unconfigured permission -> 500; role not allowed -> 403.
func AuthorizePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if GetUser(c) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		role := CurrentRole(c)
		if role == "" {
			return response.Error(c, "Authorization error", fiber.StatusInternalServerError, nil)
		}
		if len(constants.PermissionRoles[permission]) == 0 {
			return response.Error(c, "Permission configuration error", fiber.StatusInternalServerError, nil)
		}
		if !constants.AllowedRole(permission, role) {
			log.Info().Str("trace_id", GetTraceID(c)).Str("permission", permission).Str("role", role).
				Str("path", c.Path()).Msg("Permission denied")
			return response.Error(c, "User is Forbidden from performing this action", fiber.StatusForbidden, nil)
		}
		return c.Next()
	}
}
