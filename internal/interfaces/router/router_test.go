package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"sacco-backend/internal/config"
	"sacco-backend/internal/domain"
	"sacco-backend/internal/middleware"
	"sacco-backend/internal/pkg/constants"
	"sacco-backend/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie *http.Cookie
}

func (cl *client) do(method, path string, body interface{}) (*http.Response, testutil.Envelope) {
	cl.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(cl.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cl.cookie != nil {
		req.AddCookie(cl.cookie)
	}
	resp, err := cl.app.Test(req, -1)
	require.NoError(cl.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookieName {
			cl.cookie = ck
		}
	}
	var env testutil.Envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func newTestApp(t *testing.T) *fiber.App {
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("Admin#1234"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, db.Create(&domain.User{
		Fullname:     "Office Admin",
		Email:        "admin@sacco.test",
		PasswordHash: string(hash),
		Role:         constants.Admin,
	}).Error)

	cfg := &config.Config{
		Env:                "test",
		Currency:           "ETB",
		SettlementRetries:  3,
		LoginRatePerMinute: 100,
		HealthAdminKey:     "k",
	}
	return NewApp(cfg, db, rdb, middleware.SessionStore(rdb), NewServices(cfg, db))
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)
	anon := &client{t: t, app: app}

	for _, path := range []string{"/api/v1/shareholders", "/api/v1/dividends", "/api/v1/member/profile"} {
		resp, _ := anon.do("GET", path, nil)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestRegistrationApprovalFlow(t *testing.T) {
	app := newTestApp(t)
	member := &client{t: t, app: app}
	admin := &client{t: t, app: app}

	resp, env := member.do("POST", "/api/v1/auth/register", fiber.Map{
		"fullname": "Hana Girma",
		"email":    "hana@sacco.test",
		"password": "Member#123",
		"phone":    "0911222333",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, env.Error.Message)
	var reg struct {
		User struct {
			ShareholderID *uint `json:"shareholder_id"`
		} `json:"user"`
	}
	testutil.DecodeData(t, env, &reg)
	require.NotNil(t, reg.User.ShareholderID)

	resp, env = member.do("POST", "/api/v1/auth/login", fiber.Map{"email": "hana@sacco.test", "password": "Member#123"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Your membership is awaiting approval", env.Error.Message)

	resp, _ = admin.do("POST", "/api/v1/auth/login", fiber.Map{"email": "admin@sacco.test", "password": "Admin#1234"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.NotNil(t, admin.cookie)

	resp, env = admin.do("PATCH", fmt.Sprintf("/api/v1/shareholders/%d/approve", *reg.User.ShareholderID), nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error.Message)

	resp, _ = member.do("POST", "/api/v1/auth/login", fiber.Map{"email": "hana@sacco.test", "password": "Member#123"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, env = member.do("GET", "/api/v1/member/profile", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, env.Error.Message)

	resp, _ = member.do("GET", "/api/v1/shareholders", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = admin.do("GET", "/api/v1/transactions/summary", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = admin.do("DELETE", "/api/v1/auth/logout", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	resp, _ = admin.do("GET", "/api/v1/shareholders", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestLoginIsRateLimited(t *testing.T) {
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg := &config.Config{Currency: "ETB", SettlementRetries: 1, LoginRatePerMinute: 2}
	app := NewApp(cfg, db, rdb, middleware.SessionStore(rdb), NewServices(cfg, db))
	cl := &client{t: t, app: app}

	for i := 0; i < 2; i++ {
		resp, _ := cl.do("POST", "/api/v1/auth/login", fiber.Map{"email": "nobody@sacco.test", "password": "x"})
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	}
	resp, _ := cl.do("POST", "/api/v1/auth/login", fiber.Map{"email": "nobody@sacco.test", "password": "x"})
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthJSON(t *testing.T) {
	app := newTestApp(t)
	cl := &client{t: t, app: app}

	resp, err := app.Test(httptest.NewRequest("GET", "/health/json", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
	assert.NotNil(t, out["backlog"])

	resp, _ = cl.do("GET", "/reset", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}
