package models

import "time"

// Live event types published on the posts channel.
const (
	EventPostCreated  = "post_created"
	EventPostLiked    = "post_liked"
	EventCommentAdded = "comment_added"
)

// PostEvent is a notification about activity on a post.
type PostEvent struct {
	Type      string    `json:"type"`
	PostID    uint      `json:"post_id"`
	UserID    uint      `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	Likes     int64     `json:"likes,omitempty"`
	Liked     bool      `json:"liked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
