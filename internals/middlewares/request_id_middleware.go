package middlewares

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/utils"

	"coursepay_backend/internals/configs"
)

// RequestIDMiddleware tags every request with X-Request-ID and bounds the
// user context with REQUEST_TIMEOUT (default 5s, aligned with statement_timeout).
func RequestIDMiddleware() fiber.Handler {
	timeout := configs.GetEnvDuration("REQUEST_TIMEOUT", 5*time.Second)

	return func(c *fiber.Ctx) error {
		id := c.Get("X-Request-ID")
		if id == "" {
			id = utils.UUID()
		}
		c.Set("X-Request-ID", id)
		c.Locals("reqid", id)
		start := time.Now()

		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)

		err := c.Next()
		log.Printf("[REQ] id=%s %s %s status=%d dur=%s", id, c.Method(), c.OriginalURL(), c.Response().StatusCode(), time.Since(start))
		return err
	}
}
