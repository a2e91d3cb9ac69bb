// handlers/user.go
package handlers

import (
	"level-publish-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupUserRoutes(app fiber.Router, profileService *services.ProfileService, levelService *services.LevelService) {
	app.Get("/users/search", profileService.SearchUsers)
	app.Get("/users/:id/profile", profileService.GetUserProfile)
	app.Get("/users/:id/levels", levelService.GetUserLevels)

	// 🔐 Own profile
	app.Get("/me/profile", profileService.GetMyProfile)
	app.Put("/me/profile", profileService.UpdateMyProfile)
	app.Post("/me/avatar", profileService.UploadMyAvatar)
}
