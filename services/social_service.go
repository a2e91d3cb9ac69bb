package services

import (
	"context"
	"errors"

	"level-publish-system/auth"
	"level-publish-system/logger"
	"level-publish-system/models"
	"level-publish-system/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SocialService maintains likes, attempts and clears on levels.
type SocialService struct {
	DB *gorm.DB
}

func NewSocialService(db *gorm.DB) *SocialService {
	return &SocialService{DB: db}
}

// ToggleLike flips the caller's like on a level. The like row change and the
// recount of Level.Likes happen in one transaction with the level row locked.
func (s *SocialService) ToggleLike(ctx context.Context, id *auth.Identity, levelID string) (liked bool, likes int64, err error) {
	if id == nil {
		return false, 0, ErrUnauthorized
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var level models.Level
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			First(&level, "id = ?", levelID).Error; err != nil {
			return err
		}
		if _, err := ensureProfile(tx, id.UserID, id.Name, ""); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND level_id = ?", id.UserID, levelID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		liked = res.RowsAffected == 0
		if liked {
			like := models.Like{UserID: id.UserID, LevelID: levelID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&like).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.Level{}).Where("id = ?", levelID).
			UpdateColumn("likes", gorm.Expr("(SELECT COUNT(*) FROM likes WHERE likes.level_id = ?)", levelID)).Error; err != nil {
			return err
		}
		return tx.Model(&models.Level{}).Where("id = ?", levelID).Select("likes").Scan(&likes).Error
	})
	if err != nil {
		return false, 0, storeErr("toggle like", err)
	}

	result := "unliked"
	if liked {
		result = "liked"
	}
	monitoring.LikeToggles.WithLabelValues(result).Inc()
	logger.Log.Debug("[SOCIAL] like toggled",
		zap.String("level_id", levelID),
		zap.String("user_id", id.UserID),
		zap.Bool("liked", liked),
		zap.Int64("likes", likes),
	)
	return liked, likes, nil
}

func (s *SocialService) LikeCount(ctx context.Context, levelID string) (int64, error) {
	var level models.Level
	if err := s.DB.WithContext(ctx).Select("id", "likes").First(&level, "id = ?", levelID).Error; err != nil {
		return 0, storeErr("like count", err)
	}
	return level.Likes, nil
}

func (s *SocialService) HasLiked(ctx context.Context, userID, levelID string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND level_id = ?", userID, levelID).
		Count(&count).Error
	if err != nil {
		return false, storeErr("has liked", err)
	}
	return count > 0, nil
}

// RecordAttempt bumps the attempt counter and returns the new value.
func (s *SocialService) RecordAttempt(ctx context.Context, levelID string) (int64, error) {
	return s.increment(ctx, levelID, "attempts")
}

// RecordClear bumps the clear counter and returns the new value.
func (s *SocialService) RecordClear(ctx context.Context, levelID string) (int64, error) {
	return s.increment(ctx, levelID, "clears")
}

func (s *SocialService) increment(ctx context.Context, levelID, column string) (int64, error) {
	var value int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Level{}).Where("id = ?", levelID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&models.Level{}).Where("id = ?", levelID).Select(column).Scan(&value).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, err
		}
		return 0, storeErr("increment "+column, err)
	}
	monitoring.CounterIncrements.WithLabelValues(column).Inc()
	return value, nil
}
