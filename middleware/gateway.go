// middleware/gateway.go
package middleware

import (
	"crypto/subtle"
	"strings"

	"level-publish-system/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// GatewayAuthMiddleware validates the Bearer token from the Gateway
func GatewayAuthMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		logger.Log.Fatal("❌ [GATEWAY_AUTH] LEVEL_SERVICE_TOKEN is not set, service cannot authenticate Gateway")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			logger.Log.Warn("🚫 [GATEWAY_AUTH] Missing Authorization header", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "gateway authentication token missing",
			})
		}

		// raw token (no "Bearer " prefix) is accepted too
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			logger.Log.Warn("❌ [GATEWAY_AUTH] Invalid token", zap.String("path", c.Path()))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid gateway authentication token",
			})
		}

		logger.Log.Debug("✅ [GATEWAY_AUTH] Request from Gateway accepted", zap.String("path", c.Path()))
		return c.Next()
	}
}
