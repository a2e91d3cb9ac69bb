package models

import (
	"strings"
	"time"

	"github.com/gosimple/unidecode"
)

// Profile is a local snapshot of a gateway user, owned by the level service.
// Rows are created lazily the first time a user publishes, likes or edits
// their profile.
type Profile struct {
	ID         string    `gorm:"primaryKey" json:"id"` // the gateway's user id (X-User-ID)
	Name       string    `json:"name"`
	SearchName string    `gorm:"index" json:"-"` // SearchKey(Name)
	AvatarURL  string    `json:"avatarUrl"`
	CreatedAt  time.Time `json:"createdAt" gorm:"autoCreateTime"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"autoUpdateTime"`
}

// PublicProfile is what other users get to see.
type PublicProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

func (p *Profile) Public() *PublicProfile {
	return &PublicProfile{ID: p.ID, Name: p.Name, AvatarURL: p.AvatarURL}
}

// SearchKey folds a name to lowercase ASCII so "Zoë" matches "zoe".
func SearchKey(name string) string {
	return strings.ToLower(strings.TrimSpace(unidecode.Unidecode(name)))
}
