// handlers/level.go
package handlers

import (
	"level-publish-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupLevelRoutes registers the level and social counter endpoints. Caller
// identity is attached upstream; operations that need one reject anonymous
// requests with 401.
func SetupLevelRoutes(app fiber.Router, levelService *services.LevelService, socialService *services.SocialService) {
	// 🔓 Public reads
	app.Get("/levels", levelService.GetLevels)
	app.Get("/levels/:id", levelService.GetLevelByID)
	app.Get("/levels/:id/likes", socialService.GetLevelLikes)

	// 🔐 Identity required
	app.Put("/levels/:id", levelService.PublishLevel)
	app.Post("/levels/:id/like", socialService.ToggleLevelLike)

	// Ownership is only checked when LEVELS_ENFORCE_OWNERSHIP is on
	app.Post("/levels/:id/unpublish", levelService.UnpublishLevel)
	app.Delete("/levels/:id", levelService.DeleteLevel)

	// 📊 Play telemetry, anonymous
	app.Post("/levels/:id/attempts", socialService.PostAttempt)
	app.Post("/levels/:id/clears", socialService.PostClear)
}
