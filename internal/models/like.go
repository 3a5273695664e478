package models

import (
	"time"
)

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	UserID  uint      `gorm:"not null;uniqueIndex:idx_post_likes_user_post" json:"user_id"`
	PostID  uint      `gorm:"not null;uniqueIndex:idx_post_likes_user_post;index" json:"post_id"`
	Liked   bool      `gorm:"not null;default:true" json:"liked"`
	Created time.Time `gorm:"autoCreateTime" json:"created"`
}

// TableName specifies the table name for Like.
func (Like) TableName() string {
	return "post_likes"
}

// LikeResult is returned by a like toggle.
type LikeResult struct {
	PostID uint  `json:"post_id"`
	Liked  bool  `json:"liked"`
	Likes  int64 `json:"likes"`
}
