package service

import (
	"context"
	"log/slog"
	"time"

	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/observability"
	"quill/internal/repository"
)

type LikeService struct {
	posts  repository.PostRepository
	likes  repository.LikeRepository
	events EventPublisher
}

func NewLikeService(posts repository.PostRepository, likes repository.LikeRepository, events EventPublisher) *LikeService {
	return &LikeService{
		posts:  posts,
		likes:  likes,
		events: events,
	}
}

// ToggleLike removes the user's like when present and adds it otherwise, then
// reports the live like count.
func (s *LikeService) ToggleLike(ctx context.Context, userID, postID uint) (*models.LikeResult, error) {
	exists, err := s.posts.Exists(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", postID)
	}

	liked, err := s.likes.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, err
	}

	action := "like"
	if liked {
		action = "unlike"
		err = s.likes.Unlike(ctx, userID, postID)
	} else {
		err = s.likes.Like(ctx, userID, postID)
	}
	if err != nil {
		return nil, err
	}

	count, err := s.likes.Count(ctx, postID)
	if err != nil {
		return nil, err
	}
	observability.LikeToggles.WithLabelValues(action).Inc()

	result := &models.LikeResult{PostID: postID, Liked: !liked, Likes: count}
	if s.events != nil {
		event := models.PostEvent{
			Type:      models.EventPostLiked,
			PostID:    postID,
			UserID:    userID,
			Likes:     count,
			Liked:     result.Liked,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			middleware.Logger.WarnContext(ctx, "Failed to publish like event", slog.String("error", err.Error()))
		}
	}
	return result, nil
}
