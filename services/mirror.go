package services

import (
	"context"
	"errors"
	"time"

	"level-publish-system/auth"
	"level-publish-system/models"

	"gorm.io/gorm"
)

// SubmissionAuthorID is the relational author id of a level that came in
// through an issue submission. Submitters are issue-tracker logins, not
// gateway users, so they get their own namespace.
func SubmissionAuthorID(login string) string {
	return auth.SubmissionPrefix + login
}

// MirrorLevel is a document-store entry as the relational store sees it.
type MirrorLevel struct {
	ID          string
	Author      string // issue-tracker login
	AvatarURL   string
	Data        models.JSON
	PublishAt   time.Time
	UpdatedAt   time.Time
	Unpublished bool // hidden through the API since it was submitted
}

// MirrorPublish upserts a submission-derived level, published unless the
// entry was unpublished. Like Publish, it never takes over a level owned by
// another author.
func (s *LevelService) MirrorPublish(ctx context.Context, m MirrorLevel) error {
	authorID := SubmissionAuthorID(m.Author)
	publishAt := m.PublishAt.UTC()
	level := models.Level{
		ID:          m.ID,
		AuthorID:    authorID,
		AuthorName:  m.Author,
		Slug:        levelSlug(m.Data),
		Data:        m.Data,
		IsPublished: !m.Unpublished,
		PublishAt:   &publishAt,
		Source:      models.SourceSubmission,
		CreatedAt:   m.UpdatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := ensureProfile(tx, authorID, m.Author, m.AvatarURL)
		if err != nil {
			return err
		}
		if m.AvatarURL != "" && profile.AvatarURL != m.AvatarURL {
			if err := tx.Model(profile).Update("avatar_url", m.AvatarURL).Error; err != nil {
				return err
			}
		}
		return upsertOwned(tx, &level, []string{
			"author_name", "slug", "data", "is_published", "publish_at",
			"scheduled_for", "source", "updated_at",
		})
	})
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return err
		}
		return storeErr("mirror publish", err)
	}
	return nil
}

// MirrorDelete removes a submission-derived level. Deleting a level that is
// already gone is not an error.
func (s *LevelService) MirrorDelete(ctx context.Context, login, levelID string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&models.Level{}).
			Where("id = ? AND author_id = ? AND source = ?", levelID, SubmissionAuthorID(login), models.SourceSubmission).
			Count(&count).Error
		if err != nil || count == 0 {
			return err
		}
		return deleteLevelRows(tx, levelID)
	})
	return storeErr("mirror delete", err)
}

// ListSubmissionLevelIDs returns the ids of a submitter's submission-derived levels.
func (s *LevelService) ListSubmissionLevelIDs(ctx context.Context, login string) ([]string, error) {
	var ids []string
	err := s.DB.WithContext(ctx).Model(&models.Level{}).
		Where("author_id = ? AND source = ?", SubmissionAuthorID(login), models.SourceSubmission).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, storeErr("list submission levels", err)
	}
	return ids, nil
}
