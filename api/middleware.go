package api

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/meikuraledutech/chatgraph/logger"
)

// requireToken accepts "Authorization: <token>" or "Authorization: Bearer <token>".
func requireToken(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if token == "" {
			return c.Next()
		}
		got := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if got == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "authorization token is required")
		}
		if len(got) > 7 && strings.EqualFold(got[:7], "Bearer ") {
			got = got[7:]
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
		}
		return c.Next()
	}
}

// requestLogger logs one line per request once the error handler has set the
// final status.
func requestLogger(log *logger.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().Config().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		fields := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
		return nil
	}
}
