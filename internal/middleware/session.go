package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// SessionConfig for the Redis-backed session cookie.
type SessionConfig struct {
	Secret            string
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "sacco.sid"
	SessionRedisPrefix = "session:"
	UserSessionsPrefix = "user_sessions:"
	sessionMaxAge      = 24 * time.Hour
)

// SessionUser is the shape stored in session under "user".
// ShareholderID is nil for admins.
type SessionUser struct {
	UserID        string `json:"user_id"`
	Fullname      string `json:"fullname"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	ShareholderID *uint  `json:"shareholder_id"`
}

// Session connects to Redis and returns the session middleware with its client.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	return SessionStore(rdb), rdb, nil
}

// SessionStore loads the session named by the cookie before the handler runs
// and writes it back afterwards when a session id is set.
func SessionStore(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		// cookie is "s:id" or "s:id.signature"
		if strings.HasPrefix(sessionID, "s:") {
			parts := strings.SplitN(sessionID[2:], ".", 2)
			sessionID = parts[0]
		}

		var data map[string]interface{}
		if sessionID != "" {
			b, err := rdb.Get(c.Context(), SessionRedisPrefix+sessionID).Bytes()
			switch {
			case err == nil:
				_ = json.Unmarshal(b, &data)
			case err != redis.Nil:
				log.Warn().Err(err).Msg("session load failed")
			}
		}
		if data == nil {
			data = make(map[string]interface{})
		}

		c.Locals("session_data", data)
		if u, ok := data["user"]; ok {
			c.Locals(userLocal, u)
		} else {
			c.Locals(userLocal, nil)
		}
		c.Locals("session_id", sessionID)

		if err := c.Next(); err != nil {
			return err
		}

		sid, _ := c.Locals("session_id").(string)
		updated, _ := c.Locals("session_data").(map[string]interface{})
		if sid != "" && len(updated) > 0 {
			b, _ := json.Marshal(updated)
			if err := rdb.Set(context.Background(), SessionRedisPrefix+sid, b, sessionMaxAge).Err(); err != nil {
				log.Warn().Err(err).Msg("session save failed")
			}
		}
		return nil
	}
}

// GetSessionID returns the current session ID from context (for login/logout).
func GetSessionID(c *fiber.Ctx) string {
	sid, _ := c.Locals("session_id").(string)
	return sid
}

// SetSessionUser sets the user in the session and marks session for save.
// Call RegenerateSessionID first so a login never reuses a prior id.
func SetSessionUser(c *fiber.Ctx, user SessionUser) {
	data, _ := c.Locals("session_data").(map[string]interface{})
	if data == nil {
		data = make(map[string]interface{})
	}
	u := map[string]interface{}{
		"user_id":        user.UserID,
		"fullname":       user.Fullname,
		"email":          user.Email,
		"role":           user.Role,
		"shareholder_id": nil,
	}
	if user.ShareholderID != nil {
		u["shareholder_id"] = float64(*user.ShareholderID)
	}
	data["user"] = u
	c.Locals("session_data", data)
	c.Locals(userLocal, u)
}

// RegenerateSessionID creates a new session ID and sets it in Locals (cookie set by handler).
func RegenerateSessionID(c *fiber.Ctx) string {
	newID := uuid.New().String()
	c.Locals("session_id", newID)
	return newID
}

// DestroySession clears user and session data from Locals; caller must clear cookie and Redis.
func DestroySession(c *fiber.Ctx) {
	c.Locals("session_data", make(map[string]interface{}))
	c.Locals("session_id", "")
	c.Locals(userLocal, nil)
}

// SessionCookieConfig returns the cookie options used to set and clear the session.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Path:     "/",
		MaxAge:   int(sessionMaxAge.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction || cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
