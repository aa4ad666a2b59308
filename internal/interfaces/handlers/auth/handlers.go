package auth

import (
	"errors"

	authsvc "sacco-backend/internal/application/auth"
	"sacco-backend/internal/application/emails"
	"sacco-backend/internal/middleware"
	"sacco-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Handlers holds dependencies for auth endpoints.
type Handlers struct {
	UserFinder authsvc.UserFinder
	Service    *authsvc.Service
	Rdb        *redis.Client
	Config     middleware.SessionConfig
	Mailer     emails.Sender
}

// LoginRequest body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login POST /api/v1/auth/login: authenticate, start a session, track it under user_sessions:<id>.
func (h *Handlers) Login(c *fiber.Ctx) error {
	if h.UserFinder == nil {
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
		return response.Error(c, authsvc.ErrEmailPasswordRequired.Error(), fiber.StatusBadRequest, nil)
	}

	acc, err := h.UserFinder.FindByEmailAndPassword(c.UserContext(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, authsvc.ErrEmailPasswordRequired):
			return response.Error(c, err.Error(), fiber.StatusBadRequest, nil)
		case errors.Is(err, authsvc.ErrInvalidEmail), errors.Is(err, authsvc.ErrIncorrectPassword):
			return response.Error(c, err.Error(), fiber.StatusUnauthorized, nil)
		case errors.Is(err, authsvc.ErrPendingApproval):
			return response.Error(c, err.Error(), fiber.StatusForbidden, nil)
		default:
			log.Error().Err(err).Msg("login lookup failed")
			return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
		}
	}

	sessionID := middleware.RegenerateSessionID(c)
	user := middleware.SessionUser{
		UserID:        acc.User.UserID.String(),
		Fullname:      acc.User.Fullname,
		Email:         acc.User.Email,
		Role:          acc.User.Role,
		ShareholderID: acc.ShareholderID,
	}
	middleware.SetSessionUser(c, user)

	if err := h.Rdb.SAdd(c.UserContext(), middleware.UserSessionsPrefix+user.UserID, sessionID).Err(); err != nil {
		log.Error().Err(err).Msg("session tracking failed")
		return response.Error(c, "Internal Server Error", fiber.StatusInternalServerError, nil)
	}

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = "s:" + sessionID
	c.Cookie(&cookie)

	log.Info().Str("user_id", user.UserID).Str("role", user.Role).Msg("Login successful")
	return response.Success(c, "Login successful", fiber.Map{"user": user}, nil)
}

// Register POST /api/v1/auth/register: public sign-up, pending admin approval.
func (h *Handlers) Register(c *fiber.Ctx) error {
	var in authsvc.RegisterInput
	if err := c.BodyParser(&in); err != nil {
		return response.Error(c, "Invalid request body", fiber.StatusBadRequest, nil)
	}
	acc, err := h.Service.Register(c.UserContext(), in)
	if err != nil {
		return response.FromError(c, err)
	}
	if h.Mailer != nil {
		if err := h.Mailer.SendRegistrationReceived(c.UserContext(), acc.User.Email, acc.User.Fullname); err != nil {
			log.Warn().Err(err).Str("user_id", acc.User.UserID.String()).Msg("registration email failed")
		}
	}
	return response.SuccessCreated(c, "Registration received, awaiting approval", fiber.Map{
		"user": middleware.SessionUser{
			UserID:        acc.User.UserID.String(),
			Fullname:      acc.User.Fullname,
			Email:         acc.User.Email,
			Role:          acc.User.Role,
			ShareholderID: acc.ShareholderID,
		},
	}, nil)
}

// Me GET /api/v1/auth/me: current session user.
func (h *Handlers) Me(c *fiber.Ctx) error {
	user, err := authsvc.VerifyUser(middleware.GetUser(c))
	if err != nil {
		log.Info().Str("path", c.Path()).Bool("session_id_present", middleware.GetSessionID(c) != "").
			Msg("auth/me: not authenticated")
		return response.Error(c, "Not authenticated", fiber.StatusUnauthorized, nil)
	}
	return response.Success(c, "Authenticated", fiber.Map{"user": user}, nil)
}

// Logout DELETE /api/v1/auth/logout: drop the session from Redis and clear the cookie.
func (h *Handlers) Logout(c *fiber.Ctx) error {
	sessionID := middleware.GetSessionID(c)
	ctx := c.UserContext()

	if userID := middleware.CurrentUserID(c); userID != "" && sessionID != "" {
		_ = h.Rdb.SRem(ctx, middleware.UserSessionsPrefix+userID, sessionID).Err()
	}
	if sessionID != "" {
		_ = h.Rdb.Del(ctx, middleware.SessionRedisPrefix+sessionID).Err()
	}
	middleware.DestroySession(c)

	cookie := middleware.SessionCookieConfig(h.Config)
	cookie.Value = ""
	cookie.MaxAge = -1
	c.Cookie(&cookie)

	return response.Success(c, "Logged out successfully", nil, nil)
}
