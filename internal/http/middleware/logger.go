package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/itowlson/spin/internal/logging"
)

// Logger logs each HTTP request as one JSON line on the runtime log sink.
// Fields:
// - request_id (taken from context locals set by RequestID)
// - method
// - path
// - status
// - latency (in milliseconds, as float)
// - component (set by the dispatcher when a route matched)
func Logger(sink *logging.Sink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		// Process request
		err := c.Next()

		// Collect fields after handler executed to capture final status
		rid, _ := c.Locals(RequestIDLocalKey).(string)
		method := c.Method()
		// Use only the path segment (no query string)
		path := c.Path()
		status := c.Response().StatusCode()
		latency := float64(time.Since(start).Milliseconds())

		fields := map[string]any{
			"request_id": rid,
			"method":     method,
			"path":       path,
			"status":     status,
			"latency":    latency,
		}
		if component, ok := c.Locals(ComponentLocalKey).(string); ok && component != "" {
			fields["component"] = component
		}
		sink.Encode(fields)

		return err
	}
}
