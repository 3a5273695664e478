package models

import (
	"time"
)

// Comment represents a comment on a post. Comments are append-only.
type Comment struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Body     string    `gorm:"type:text;not null" json:"body"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	PostID   uint      `gorm:"not null;index" json:"post_id"`
	Created  time.Time `gorm:"autoCreateTime" json:"created"`

	Username string `gorm:"->;-:migration" json:"username"`
}
