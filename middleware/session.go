// middleware/session.go
package middleware

import (
	"strings"

	"level-publish-system/auth"
	"level-publish-system/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SessionAuthMiddleware resolves the caller from a session token when the
// Gateway did not attach an identity. The token comes from X-Session-Token
// (or the `token` query param), the device from X-Device-ID (or `device_id`).
// A nil client disables the fallback.
func SessionAuthMiddleware(authClient *auth.ServiceClient) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authClient == nil || auth.FromCtx(c) != nil {
			return c.Next()
		}

		accessToken := strings.TrimSpace(c.Get("X-Session-Token"))
		if accessToken == "" {
			accessToken = strings.TrimSpace(c.Query("token"))
		}
		if accessToken == "" {
			return c.Next()
		}
		deviceID := strings.TrimSpace(c.Get("X-Device-ID"))
		if deviceID == "" {
			deviceID = strings.TrimSpace(c.Query("device_id"))
		}

		resp, err := authClient.ValidateToken(c.UserContext(), accessToken, deviceID)
		if err != nil {
			logger.Log.Warn("[SESSION_AUTH] ❌ validation failed",
				zap.String("path", c.Path()),
				zap.String("device_id", deviceID),
				zap.Error(err),
			)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid session token",
			})
		}

		if auth.Reserved(resp.UserID) {
			logger.Log.Warn("[SESSION_AUTH] 🚫 reserved user id rejected", zap.String("user_id", resp.UserID))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "user id uses a reserved namespace",
			})
		}

		auth.SetIdentity(c, resp.Identity())
		logger.Log.Debug("[SESSION_AUTH] ✅ authenticated", zap.String("user_id", resp.UserID))
		return c.Next()
	}
}
