package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
)

const maxCommentLen = 2000

type CommentService struct {
	comments repository.CommentRepository
	posts    repository.PostRepository
	events   EventPublisher
}

type AddCommentInput struct {
	PostID   uint
	AuthorID uint
	Body     string
}

func NewCommentService(comments repository.CommentRepository, posts repository.PostRepository, events EventPublisher) *CommentService {
	return &CommentService{
		comments: comments,
		posts:    posts,
		events:   events,
	}
}

// AddComment appends a comment to an existing post.
func (s *CommentService) AddComment(ctx context.Context, in AddCommentInput) (*models.Comment, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Body is required")
	}
	if utf8.RuneCountInString(body) > maxCommentLen {
		return nil, models.NewValidationError(fmt.Sprintf("Comment too long (max %d characters)", maxCommentLen))
	}

	exists, err := s.posts.Exists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	comment := &models.Comment{Body: body, AuthorID: in.AuthorID, PostID: in.PostID}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	observability.CommentsCreated.Inc()

	if s.events != nil {
		event := models.PostEvent{
			Type:      models.EventCommentAdded,
			PostID:    in.PostID,
			UserID:    in.AuthorID,
			CreatedAt: comment.Created,
		}
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		if err := s.events.Publish(ctx, event); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish comment event", slog.String("error", err.Error()))
		}
	}
	return comment, nil
}

// ListComments returns the post's comments, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return s.comments.ListByPost(ctx, postID)
}
