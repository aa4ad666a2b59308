package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sacco-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// AsUser puts a session user into Locals the way the session middleware does.
func AsUser(role string, shareholderID uint) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var sid interface{}
		if shareholderID != 0 {
			sid = float64(shareholderID)
		}
		c.Locals("user", map[string]interface{}{
			"user_id":        uuid.New().String(),
			"fullname":       "Test User",
			"email":          "user@sacco.test",
			"role":           role,
			"shareholder_id": sid,
		})
		return c.Next()
	}
}

// NewApp builds a fiber app with the production error handler.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
}

// Envelope is the decoded response body.
type Envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Message    string `json:"message"`
		StatusCode int    `json:"statusCode"`
	} `json:"error"`
}

// Do sends a request with an optional JSON body and decodes the envelope.
func Do(t *testing.T, app *fiber.App, method, path string, body interface{}) (*http.Response, Envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var env Envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

// DecodeData unmarshals the envelope's data field into out.
func DecodeData(t *testing.T, env Envelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}
