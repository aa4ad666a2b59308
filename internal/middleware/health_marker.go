package middleware

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis keys for request statistics, read and reset by the health handlers.
const (
	KeyReqTotal  = "health:sacco:req_total"
	KeyReqErrors = "health:sacco:req_errors"
	KeyResTime   = "health:sacco:res_time_total"
	KeyResCount  = "health:sacco:res_count"
	KeyStartTime = "health:sacco:start_time"
	KeyLastReq   = "health:sacco:last_request"
	KeyErrorLog  = "health:sacco:error_log"

	// ErrorLogSize bounds the KeyErrorLog list.
	ErrorLogSize = 50
)

// HealthMarker records request stats in Redis (skips /health* and favicon).
// Redis failures never fail the request.
func HealthMarker(rdb *redis.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()
		if strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/favicon") || path == "/reset" {
			return c.Next()
		}

		start := time.Now()
		ctx := context.Background()
		lastReq, _ := json.Marshal(map[string]interface{}{
			"time":   start.UTC(),
			"ip":     c.IP(),
			"path":   c.OriginalURL(),
			"method": c.Method(),
		})
		pipe := rdb.Pipeline()
		pipe.Set(ctx, KeyLastReq, lastReq, 0)
		pipe.Incr(ctx, KeyReqTotal)
		_, _ = pipe.Exec(ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		pipe = rdb.Pipeline()
		pipe.Incr(ctx, KeyResCount)
		pipe.IncrByFloat(ctx, KeyResTime, float64(time.Since(start).Milliseconds()))
		if status >= fiber.StatusInternalServerError {
			entry, _ := json.Marshal(map[string]interface{}{
				"time":     time.Now().UTC(),
				"path":     c.OriginalURL(),
				"method":   c.Method(),
				"status":   status,
				"trace_id": GetTraceID(c),
			})
			pipe.Incr(ctx, KeyReqErrors)
			pipe.LPush(ctx, KeyErrorLog, entry)
			pipe.LTrim(ctx, KeyErrorLog, 0, ErrorLogSize-1)
		}
		_, _ = pipe.Exec(ctx)
		return err
	}
}
