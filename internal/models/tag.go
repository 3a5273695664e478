package models

import "time"

// Tag is a label shared between posts. Tags are created on first use and
// are never removed, even when no post references them any more.
type Tag struct {
	ID      uint      `gorm:"primaryKey" json:"id"`
	Name    string    `gorm:"size:50;not null;uniqueIndex" json:"name"`
	Created time.Time `gorm:"autoCreateTime" json:"created"`
}

// PostTag links a post to a tag.
type PostTag struct {
	PostID uint `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	TagID  uint `gorm:"primaryKey;autoIncrement:false;index" json:"tag_id"`
}

// TableName specifies the table name for PostTag.
func (PostTag) TableName() string {
	return "post_tags"
}
