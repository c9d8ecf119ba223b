package users

import (
	"strings"
	"time"
)

// User is the persistent account record keyed by the provider's stable
// subject identifier. AuthID is immutable once set; profile fields are
// captured at creation and never synced afterwards.
type User struct {
	ID        string    `gorm:"column:id;primaryKey;size:190;not null"`
	AuthID    string    `gorm:"column:auth_id;size:190;not null;uniqueIndex"`
	Email     string    `gorm:"column:email;size:320;not null"`
	FullName  string    `gorm:"column:full_name;size:320"`
	AvatarURL string    `gorm:"column:avatar_url;size:512"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
