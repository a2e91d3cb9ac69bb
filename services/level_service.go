package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"level-publish-system/auth"
	"level-publish-system/docstore"
	"level-publish-system/logger"
	"level-publish-system/models"

	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PageSize bounds the published-levels listing.
const PageSize = 50

// ErrInvalidInput marks a request body the API cannot use.
var ErrInvalidInput = errors.New("invalid input")

type LevelService struct {
	DB *gorm.DB

	// EnforceOwnership makes Unpublish and Delete check the caller is the author.
	EnforceOwnership bool

	// Docs, when set, receives unpublish and delete of submission-derived
	// levels so reconciliation keeps them.
	Docs *docstore.Repository

	Now func() time.Time
}

func NewLevelService(db *gorm.DB, enforceOwnership bool) *LevelService {
	return &LevelService{DB: db, EnforceOwnership: enforceOwnership, Now: time.Now}
}

type PublishInput struct {
	Data      models.JSON `json:"data"`
	PublishAt *time.Time  `json:"publish_at,omitempty"` // future time schedules instead of publishing
}

// ListPublished returns the most recently updated published levels.
func (s *LevelService) ListPublished(ctx context.Context) ([]models.Level, error) {
	levels := []models.Level{}
	err := s.DB.WithContext(ctx).
		Where("is_published = ?", true).
		Order("updated_at DESC").
		Limit(PageSize).
		Find(&levels).Error
	if err != nil {
		return nil, storeErr("list published levels", err)
	}
	return levels, nil
}

func (s *LevelService) Get(ctx context.Context, id string) (*models.Level, error) {
	var level models.Level
	if err := s.DB.WithContext(ctx).First(&level, "id = ?", id).Error; err != nil {
		return nil, storeErr("get level", err)
	}
	return &level, nil
}

// ListByAuthor returns an author's published levels, newest first.
func (s *LevelService) ListByAuthor(ctx context.Context, authorID string) ([]models.Level, error) {
	levels := []models.Level{}
	err := s.DB.WithContext(ctx).
		Where("author_id = ? AND is_published = ?", authorID, true).
		Order("updated_at DESC").
		Find(&levels).Error
	if err != nil {
		return nil, storeErr("list levels by author", err)
	}
	return levels, nil
}

// Publish inserts the level or updates it in place. An existing row owned by
// somebody else is left alone and ErrForbidden returned.
func (s *LevelService) Publish(ctx context.Context, id *auth.Identity, levelID string, in PublishInput) (*models.Level, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	if auth.Reserved(id.UserID) {
		return nil, ErrForbidden
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidInput)
	}

	now := s.Now().UTC()
	level := models.Level{
		ID:         levelID,
		AuthorID:   id.UserID,
		AuthorName: id.Name,
		Slug:       levelSlug(in.Data),
		Data:       in.Data,
		Source:     models.SourceAPI,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if in.PublishAt != nil && in.PublishAt.After(now) {
		scheduled := in.PublishAt.UTC()
		level.ScheduledFor = &scheduled
	} else {
		level.IsPublished = true
		level.PublishAt = &now
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := ensureProfile(tx, id.UserID, id.Name, "")
		if err != nil {
			return err
		}
		if level.AuthorName == "" {
			level.AuthorName = profile.Name
		}

		if err := upsertOwned(tx, &level, []string{
			"author_name", "slug", "data", "is_published", "publish_at",
			"scheduled_for", "source", "updated_at",
		}); err != nil {
			return err
		}
		return tx.First(&level, "id = ?", levelID).Error
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, err
		}
		return nil, storeErr("publish level", err)
	}

	if level.IsPublished {
		logger.Log.Info("✅ [LEVELS] published", zap.String("id", level.ID), zap.String("author_id", level.AuthorID))
	} else {
		logger.Log.Info("🕒 [LEVELS] scheduled", zap.String("id", level.ID), zap.Timep("scheduled_for", level.ScheduledFor))
	}
	return &level, nil
}

// Unpublish hides the level and cancels any pending schedule.
func (s *LevelService) Unpublish(ctx context.Context, id *auth.Identity, levelID string) (*models.Level, error) {
	var level models.Level
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&level, "id = ?", levelID).Error; err != nil {
			return err
		}
		if err := s.checkOwner(id, &level); err != nil {
			return err
		}
		now := s.Now().UTC()
		err := s.syncDocument(ctx, &level, func(u *docstore.UserEntry) {
			if entry, ok := u.Find(levelID); ok {
				entry[docstore.FieldUnpublishedAt] = now.Format(time.RFC3339)
				entry[docstore.FieldUpdatedAt] = now.Format(time.RFC3339)
			}
		})
		if err != nil {
			return err
		}
		return tx.Model(&level).Updates(map[string]any{
			"is_published":  false,
			"scheduled_for": nil,
			"updated_at":    now,
		}).Error
	})
	if err != nil {
		return nil, s.mutationErr("unpublish level", err)
	}
	return &level, nil
}

// Delete removes the level and every like pointing at it.
func (s *LevelService) Delete(ctx context.Context, id *auth.Identity, levelID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var level models.Level
		if err := tx.First(&level, "id = ?", levelID).Error; err != nil {
			return err
		}
		if err := s.checkOwner(id, &level); err != nil {
			return err
		}
		err := s.syncDocument(ctx, &level, func(u *docstore.UserEntry) {
			u.Remove(levelID)
		})
		if err != nil {
			return err
		}
		return deleteLevelRows(tx, levelID)
	})
	if err != nil {
		return s.mutationErr("delete level", err)
	}
	logger.Log.Info("🗑️ [LEVELS] deleted", zap.String("id", levelID))
	return nil
}

// PublishDue publishes every scheduled level whose time has come.
func (s *LevelService) PublishDue(ctx context.Context, now time.Time) (int, error) {
	var due []models.Level
	err := s.DB.WithContext(ctx).
		Where("is_published = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", false, now).
		Find(&due).Error
	if err != nil {
		return 0, storeErr("find scheduled levels", err)
	}

	published := 0
	for _, l := range due {
		publishAt := *l.ScheduledFor
		res := s.DB.WithContext(ctx).Model(&models.Level{}).
			Where("id = ? AND is_published = ?", l.ID, false).
			Updates(map[string]any{
				"is_published":  true,
				"publish_at":    publishAt,
				"scheduled_for": nil,
				"updated_at":    now,
			})
		if res.Error != nil {
			logger.Log.Error("[SCHEDULER] failed to publish level", zap.String("id", l.ID), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected > 0 {
			published++
			logger.Log.Info("✅ [SCHEDULER] auto-published level", zap.String("id", l.ID))
		}
	}
	return published, nil
}

// syncDocument applies fn to the submitter's document entry of a
// submission-derived level. It runs inside the relational transaction, so a
// failed document write rolls the row change back.
func (s *LevelService) syncDocument(ctx context.Context, level *models.Level, fn func(u *docstore.UserEntry)) error {
	if s.Docs == nil || level.Source != models.SourceSubmission {
		return nil
	}
	login, ok := strings.CutPrefix(level.AuthorID, auth.SubmissionPrefix)
	if !ok {
		return nil
	}
	return s.Docs.Update(ctx, func(doc docstore.Document) error {
		if u := doc[login]; u != nil {
			fn(u)
		}
		return nil
	})
}

func (s *LevelService) checkOwner(id *auth.Identity, level *models.Level) error {
	if !s.EnforceOwnership {
		return nil
	}
	if id == nil {
		return ErrUnauthorized
	}
	if level.AuthorID != id.UserID {
		return ErrForbidden
	}
	return nil
}

func (s *LevelService) mutationErr(op string, err error) error {
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
		return err
	}
	return storeErr(op, err)
}

// upsertOwned inserts level or updates the listed columns, but only when the
// stored row has the same author. Zero affected rows means another author owns it.
func upsertOwned(tx *gorm.DB, level *models.Level, columns []string) error {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "levels.author_id = excluded.author_id"},
		}},
	}).Create(level)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrForbidden
	}
	return nil
}

func deleteLevelRows(tx *gorm.DB, levelID string) error {
	if err := tx.Where("level_id = ?", levelID).Delete(&models.Like{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", levelID).Delete(&models.Level{}).Error
}

// ensureProfile creates the profile row on first use and returns it.
func ensureProfile(tx *gorm.DB, userID, name, avatarURL string) (*models.Profile, error) {
	profile := models.Profile{
		ID:         userID,
		Name:       name,
		SearchName: models.SearchKey(name),
		AvatarURL:  avatarURL,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&profile).Error; err != nil {
		return nil, err
	}
	if err := tx.First(&profile, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// levelSlug derives a URL slug from the level's title or name field.
func levelSlug(data models.JSON) string {
	fields, ok := data.Object()
	if !ok {
		return ""
	}
	for _, key := range []string{"title", "name"} {
		if v, ok := fields[key].(string); ok && strings.TrimSpace(v) != "" {
			return slug.Make(v)
		}
	}
	return ""
}
