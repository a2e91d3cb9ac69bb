// models/level.go
package models

import (
	"time"
)

const (
	SourceAPI        = "api"
	SourceSubmission = "submission"
)

// Level is a published (or draft) unit of user-authored content. Data is
// opaque to the service.
type Level struct {
	ID         string `json:"id" gorm:"primaryKey"`
	AuthorID   string `json:"authorId" gorm:"index;not null"`
	AuthorName string `json:"authorName"`
	Slug       string `json:"slug" gorm:"index"`
	Data       JSON   `json:"data"`

	// 🎛️ Publishing state
	IsPublished  bool       `json:"isPublished" gorm:"index"`
	PublishAt    *time.Time `json:"publishAt"`
	ScheduledFor *time.Time `json:"scheduledFor,omitempty" gorm:"index"` // pending scheduled publication
	Source       string     `json:"source" gorm:"size:16;not null"`      // api | submission

	// 📊 Social counters
	Likes    int64 `json:"likes" gorm:"not null;default:0"`
	Attempts int64 `json:"attempts" gorm:"not null;default:0"`
	Clears   int64 `json:"clears" gorm:"not null;default:0"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Like is the (user, level) relationship; its existence is the truth behind Level.Likes.
type Like struct {
	UserID    string    `json:"userId" gorm:"primaryKey"`
	LevelID   string    `json:"levelId" gorm:"primaryKey;index"`
	CreatedAt time.Time `json:"createdAt"`
}
