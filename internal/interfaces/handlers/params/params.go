// Package params parses path, query and body values shared by the handlers.
package params

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"sacco-backend/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// ID parses a positive integer path parameter.
func ID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperrors.InvalidRequest("Invalid " + name)
	}
	return uint(v), nil
}

// QueryUint parses an optional positive integer query parameter; absent means 0.
func QueryUint(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.InvalidRequest("Invalid " + name)
	}
	return uint(v), nil
}

// Body decodes the JSON body into out.
func Body(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.InvalidRequest("Invalid request body")
	}
	return nil
}

// Date accepts "2006-01-02" or RFC 3339 timestamps in JSON bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		d.Time = t.UTC()
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t.UTC()
	return nil
}

// Ptr returns the parsed time, or nil when the field was absent.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}
