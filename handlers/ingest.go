// handlers/ingest.go
package handlers

import (
	"level-publish-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupWebhookRoutes must be registered before the gateway middleware:
// GitHub calls it directly and authenticates with a payload signature.
func SetupWebhookRoutes(app fiber.Router, webhookService *services.WebhookService) {
	app.Post("/webhooks/github", webhookService.HandleGitHub)
}
