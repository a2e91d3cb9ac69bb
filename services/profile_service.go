package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"level-publish-system/auth"
	"level-publish-system/models"
	"level-publish-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotConfigured is returned by features whose backing service is not set up.
var ErrNotConfigured = errors.New("not configured")

const maxAvatarSize = 5 * 1024 * 1024

type ProfileService struct {
	DB *gorm.DB
	R2 *utils.R2 // nil disables avatar uploads
}

func NewProfileService(db *gorm.DB, r2 *utils.R2) *ProfileService {
	return &ProfileService{DB: db, R2: r2}
}

type ProfileInput struct {
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func (s *ProfileService) Get(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	if err := s.DB.WithContext(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, storeErr("get profile", err)
	}
	return &profile, nil
}

// Ensure returns the caller's profile, creating it on first use.
func (s *ProfileService) Ensure(ctx context.Context, id *auth.Identity) (*models.Profile, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	profile, err := ensureProfile(s.DB.WithContext(ctx), id.UserID, id.Name, "")
	if err != nil {
		return nil, storeErr("ensure profile", err)
	}
	return profile, nil
}

// Update writes the provided fields of the caller's profile.
func (s *ProfileService) Update(ctx context.Context, id *auth.Identity, in ProfileInput) (*models.Profile, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}

	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
		}
		updates["name"] = name
		updates["search_name"] = models.SearchKey(name)
	}
	if in.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*in.AvatarURL)
	}

	var profile *models.Profile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		profile, err = ensureProfile(tx, id.UserID, id.Name, "")
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(profile).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(profile, "id = ?", id.UserID).Error
	})
	if err != nil {
		return nil, storeErr("update profile", err)
	}
	return profile, nil
}

// Search matches names case- and diacritic-insensitively.
func (s *ProfileService) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if limit <= 0 || limit > 100 {
		limit = PageSize
	}

	profiles := []models.Profile{}
	db := s.DB.WithContext(ctx).Model(&models.Profile{}).Order("search_name").Limit(limit)
	if key := models.SearchKey(query); key != "" {
		db = db.Where("search_name LIKE ?", "%"+key+"%")
	}
	if err := db.Find(&profiles).Error; err != nil {
		return nil, storeErr("search profiles", err)
	}
	return profiles, nil
}

// UploadAvatar stores the image in R2 and points the caller's profile at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, id *auth.Identity, file *multipart.FileHeader) (*models.Profile, error) {
	if id == nil {
		return nil, ErrUnauthorized
	}
	if s.R2 == nil {
		return nil, fmt.Errorf("avatar uploads: %w", ErrNotConfigured)
	}
	if file.Size > maxAvatarSize {
		return nil, fmt.Errorf("%w: avatar too large (max 5MB)", ErrInvalidInput)
	}

	ext := filepath.Ext(file.Filename)
	if ext == "" {
		ext = ".png"
	}
	key := "avatars/" + uuid.NewString() + ext
	url, err := s.R2.UploadFile(ctx, file, key)
	if err != nil {
		return nil, &StoreError{Op: "upload avatar", Err: err}
	}

	return s.Update(ctx, id, ProfileInput{AvatarURL: &url})
}
