package middleware

import (
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

const userLocal = "user"

// RequireAuth ensures a user is in the session. Returns 401 with standard error format if not.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals(userLocal) == nil {
			return response.Unauthorized(c, "Unauthorized")
		}
		return c.Next()
	}
}

// GetUser returns the session user from Locals (nil if not logged in).
func GetUser(c *fiber.Ctx) interface{} {
	return c.Locals(userLocal)
}

func sessionField(c *fiber.Ctx, key string) interface{} {
	m, ok := GetUser(c).(map[string]interface{})
	if !ok {
		return nil
	}
	return m[key]
}

// CurrentRole returns the role of the session user, or "".
func CurrentRole(c *fiber.Ctx) string {
	r, _ := sessionField(c, "role").(string)
	return r
}

// CurrentUserID returns the user id of the session user, or "".
func CurrentUserID(c *fiber.Ctx) string {
	id, _ := sessionField(c, "user_id").(string)
	return id
}

// CurrentShareholderID returns the shareholder linked to the session user.
func CurrentShareholderID(c *fiber.Ctx) (uint, bool) {
	switch v := sessionField(c, "shareholder_id").(type) {
	case float64:
		if v > 0 {
			return uint(v), true
		}
	case uint:
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}
