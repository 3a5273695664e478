// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post represents a blog post.
type Post struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	Title    string    `gorm:"size:200;not null" json:"title"`
	Body     string    `gorm:"type:text;not null" json:"body"`
	AuthorID uint      `gorm:"not null;index" json:"author_id"`
	Created  time.Time `gorm:"autoCreateTime;index" json:"created"`

	// Derived at query time, never persisted.
	Username      string `gorm:"->;-:migration" json:"username"`
	LikesCount    int64  `gorm:"->;-:migration" json:"likes"`
	CommentsCount int64  `gorm:"->;-:migration" json:"comments_count"`
	Image         string `gorm:"->;-:migration" json:"image,omitempty"`
	Avatar        string `gorm:"->;-:migration" json:"avatar"`
	// Liked indicates whether the requesting user liked this post
	Liked bool `gorm:"->;-:migration" json:"liked"`

	Tags     []string  `gorm:"-" json:"tags"`
	Comments []Comment `gorm:"-" json:"comments,omitempty"`
	BodyHTML string    `gorm:"-" json:"body_html,omitempty"`
	EditURL  string    `gorm:"-" json:"edit_url,omitempty"`
}

// IsAuthor reports whether userID owns the post.
func (p *Post) IsAuthor(userID uint) bool {
	return userID != 0 && p.AuthorID == userID
}

// PostPage is one page of the post listing.
type PostPage struct {
	Posts   []*Post `json:"posts"`
	Page    int     `json:"page"`
	PerPage int     `json:"per_page"`
	HasNext bool    `json:"has_next"`
}
