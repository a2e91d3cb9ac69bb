// Package auth carries the caller identity resolved by the upstream gateway.
package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	localsUserID   = "user_id"
	localsUserName = "user_name"
)

// SubmissionPrefix namespaces the author ids of levels that came in through
// issue submissions. No gateway or session identity may carry it.
const SubmissionPrefix = "github:"

// Reserved reports whether userID lies in the submission author namespace.
func Reserved(userID string) bool {
	return strings.HasPrefix(userID, SubmissionPrefix)
}

// Identity is a resolved caller. A nil *Identity means unauthenticated.
type Identity struct {
	UserID string
	Name   string
}

// SetIdentity attaches id to the request.
func SetIdentity(c *fiber.Ctx, id *Identity) {
	if id == nil || id.UserID == "" {
		return
	}
	c.Locals(localsUserID, id.UserID)
	c.Locals(localsUserName, id.Name)
}

// FromCtx returns the identity attached by the user-context middleware, or nil.
func FromCtx(c *fiber.Ctx) *Identity {
	userID, _ := c.Locals(localsUserID).(string)
	if userID == "" {
		return nil
	}
	name, _ := c.Locals(localsUserName).(string)
	return &Identity{UserID: userID, Name: name}
}
