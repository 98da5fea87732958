package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unipet/billing-engine/internal/logging"
)

// Correlation puts the request id on the user context, so every log line a
// service writes for this request carries it. It must run after requestid.
func Correlation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _ := c.Locals("requestid").(string)
		if id == "" {
			id = c.Get(fiber.HeaderXRequestID)
		}
		if id != "" {
			c.SetUserContext(logging.WithCorrelationID(c.UserContext(), id))
		}
		return c.Next()
	}
}

func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	}
}
