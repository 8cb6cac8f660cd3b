package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/astrosearch/api/pkg/response"
)

const userHeader = "X-User-ID"

// RequireUser extracts the opaque caller identity from the X-User-ID header.
// Requests without it are rejected before any handler runs.
func RequireUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(userHeader)
		if userID == "" {
			return response.ValidationError(c, "Missing X-User-ID header", nil)
		}

		c.Locals("userID", userID)
		return c.Next()
	}
}

// GetUserID returns the caller identity stored by RequireUser.
func GetUserID(c *fiber.Ctx) string {
	if userID, ok := c.Locals("userID").(string); ok {
		return userID
	}
	return ""
}
