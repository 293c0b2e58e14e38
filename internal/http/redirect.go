package http

import (
	"github.com/gofiber/fiber/v2"
)

// RedirectExecutor answers every request with a fixed redirect.
type RedirectExecutor struct {
	location string
	status   int
}

// NewRedirectExecutor creates the executor. A zero status defaults to
// 302 Found; the manifest validator has already confirmed any explicit
// status is in the 3xx range.
func NewRedirectExecutor(location string, status int) *RedirectExecutor {
	if status == 0 {
		status = fiber.StatusFound
	}
	return &RedirectExecutor{location: location, status: status}
}

// Handle issues the redirect.
func (e *RedirectExecutor) Handle(c *fiber.Ctx, _ *Host, _ string) error {
	return c.Redirect(e.location, e.status)
}
