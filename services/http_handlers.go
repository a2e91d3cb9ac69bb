package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"level-publish-system/auth"
	"level-publish-system/models"

	"github.com/gofiber/fiber/v2"
)

func parseJSONBody(c *fiber.Ctx, out any) error {
	if err := json.Unmarshal(c.Body(), out); err != nil {
		return fmt.Errorf("%w: request body must be a JSON object", ErrInvalidInput)
	}
	return nil
}

// GetLevels returns up to PageSize published levels, most recent first.
func (s *LevelService) GetLevels(c *fiber.Ctx) error {
	levels, err := s.ListPublished(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(levels)
}

func (s *LevelService) GetLevelByID(c *fiber.Ctx) error {
	level, err := s.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(level)
}

// PublishLevel upserts the level at :id and publishes (or schedules) it.
func (s *LevelService) PublishLevel(c *fiber.Ctx) error {
	var in PublishInput
	if err := parseJSONBody(c, &in); err != nil {
		return respondError(c, err)
	}
	level, err := s.Publish(c.UserContext(), auth.FromCtx(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(level)
}

func (s *LevelService) UnpublishLevel(c *fiber.Ctx) error {
	level, err := s.Unpublish(c.UserContext(), auth.FromCtx(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(level)
}

func (s *LevelService) DeleteLevel(c *fiber.Ctx) error {
	if err := s.Delete(c.UserContext(), auth.FromCtx(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetUserLevels lists the published levels of the user at :id.
func (s *LevelService) GetUserLevels(c *fiber.Ctx) error {
	levels, err := s.ListByAuthor(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(levels)
}

func (s *SocialService) ToggleLevelLike(c *fiber.Ctx) error {
	liked, likes, err := s.ToggleLike(c.UserContext(), auth.FromCtx(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"liked": liked, "likes": likes})
}

// GetLevelLikes returns the like count, plus whether the caller likes the
// level when the request carries an identity.
func (s *SocialService) GetLevelLikes(c *fiber.Ctx) error {
	levelID := c.Params("id")
	likes, err := s.LikeCount(c.UserContext(), levelID)
	if err != nil {
		return respondError(c, err)
	}
	resp := fiber.Map{"likes": likes}
	if id := auth.FromCtx(c); id != nil {
		liked, err := s.HasLiked(c.UserContext(), id.UserID, levelID)
		if err != nil {
			return respondError(c, err)
		}
		resp["liked"] = liked
	}
	return c.JSON(resp)
}

func (s *SocialService) PostAttempt(c *fiber.Ctx) error {
	attempts, err := s.RecordAttempt(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"attempts": attempts})
}

func (s *SocialService) PostClear(c *fiber.Ctx) error {
	clears, err := s.RecordClear(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"clears": clears})
}

func (s *ProfileService) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.Ensure(c.UserContext(), auth.FromCtx(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

func (s *ProfileService) UpdateMyProfile(c *fiber.Ctx) error {
	id := auth.FromCtx(c)
	if id == nil {
		return respondError(c, ErrUnauthorized)
	}
	var in ProfileInput
	if err := parseJSONBody(c, &in); err != nil {
		return respondError(c, err)
	}
	profile, err := s.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

func (s *ProfileService) UploadMyAvatar(c *fiber.Ctx) error {
	id := auth.FromCtx(c)
	if id == nil {
		return respondError(c, ErrUnauthorized)
	}
	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar is required"})
	}
	profile, err := s.UploadAvatar(c.UserContext(), id, file)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetUserProfile returns the public projection of a profile, or null.
func (s *ProfileService) GetUserProfile(c *fiber.Ctx) error {
	profile, err := s.Get(c.UserContext(), c.Params("id"))
	if errors.Is(err, ErrNotFound) {
		return c.JSON(nil)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile.Public())
}

// SearchUsers searches local profiles by name.
func (s *ProfileService) SearchUsers(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(PageSize)))
	if err != nil {
		limit = PageSize
	}
	profiles, err := s.Search(c.UserContext(), c.Query("q"), limit)
	if err != nil {
		return respondError(c, err)
	}

	res := make([]*models.PublicProfile, len(profiles))
	for i := range profiles {
		res[i] = profiles[i].Public()
	}
	return c.JSON(res)
}
