package models

import (
	"time"
)

// DefaultAvatarPath is assigned to users that register without an avatar.
const DefaultAvatarPath = "default_ava/no_ava.jpg"

// User represents a registered author.
type User struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Username   string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Password   string    `gorm:"not null" json:"-"`
	AvatarPath string    `gorm:"size:255;not null;default:'default_ava/no_ava.jpg'" json:"avatar_path"`
	CreatedAt  time.Time `json:"created_at"`
}
