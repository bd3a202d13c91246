package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/zhfeed/hnzh/internal/config"
	"github.com/zhfeed/hnzh/internal/logger"
)

// CronAuth guards the scheduled refresh endpoint. In production mode
// with a configured secret it requires "Authorization: Bearer <secret>";
// in any other mode the endpoint is open. The check runs before any
// fetch or persist work.
func CronAuth(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.IsProduction() || cfg.CronSecret == "" {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if authHeader == "" || token == authHeader ||
			subtle.ConstantTimeCompare([]byte(token), []byte(cfg.CronSecret)) != 1 {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Msg("Rejected cron request with missing or invalid token")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}

		return c.Next()
	}
}
