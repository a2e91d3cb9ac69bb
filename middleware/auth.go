// middleware/auth.go
package middleware

import (
	"strings"

	"level-publish-system/auth"
	"level-publish-system/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserContextMiddleware extracts the user identity set by the Gateway.
// Requests without X-User-ID pass through unauthenticated; operations that
// need a caller reject them on their own.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			return c.Next()
		}

		if auth.Reserved(userID) {
			logger.Log.Warn("🚫 [USER_CTX] reserved user id rejected", zap.String("user_id", userID))
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "user id uses a reserved namespace",
			})
		}

		id := &auth.Identity{
			UserID: userID,
			Name:   strings.TrimSpace(c.Get("X-User-Name")),
		}
		auth.SetIdentity(c, id)

		logger.Log.Debug("👤 [USER_CTX] identity attached",
			zap.String("user_id", id.UserID),
			zap.String("user_name", id.Name),
			zap.String("path", c.Path()),
		)
		return c.Next()
	}
}
