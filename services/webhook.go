package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"level-publish-system/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// issueEvent is the part of GitHub's "issues" webhook payload we read.
type issueEvent struct {
	Action string `json:"action"`
	Issue  struct {
		Number int64  `json:"number"`
		Body   string `json:"body"`
		User   struct {
			Login     string `json:"login"`
			AvatarURL string `json:"avatar_url"`
		} `json:"user"`
	} `json:"issue"`
}

var ingestedIssueActions = map[string]bool{
	"opened":   true,
	"edited":   true,
	"reopened": true,
}

// WebhookService turns GitHub issue events into submissions.
type WebhookService struct {
	Ingest *IngestService
	Secret string
}

func NewWebhookService(ingest *IngestService, secret string) *WebhookService {
	return &WebhookService{Ingest: ingest, Secret: secret}
}

// HandleGitHub serves POST /webhooks/github.
func (s *WebhookService) HandleGitHub(c *fiber.Ctx) error {
	if s.Secret == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "webhook secret not configured"})
	}

	body := c.Body()
	if !validSignature(s.Secret, body, c.Get("X-Hub-Signature-256")) {
		logger.Log.Warn("🚫 [WEBHOOK] bad signature", zap.String("delivery", c.Get("X-GitHub-Delivery")))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid signature"})
	}

	event := c.Get("X-GitHub-Event")
	switch event {
	case "ping":
		return c.JSON(fiber.Map{"ok": true})
	case "issues":
	default:
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ignored": event})
	}

	var payload issueEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON body"})
	}
	if !ingestedIssueActions[payload.Action] {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"ignored": "issues." + payload.Action})
	}

	result, err := s.Ingest.Process(c.UserContext(), Submission{
		Body:      payload.Issue.Body,
		Author:    payload.Issue.User.Login,
		AvatarURL: payload.Issue.User.AvatarURL,
		Number:    payload.Issue.Number,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

// validSignature checks GitHub's "sha256=<hex hmac>" header.
func validSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
