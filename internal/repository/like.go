package repository

import (
	"context"
	"fmt"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores the (user, post) like pairs.
type LikeRepository interface {
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) error
	Count(ctx context.Context, postID uint) (int64, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new LikeRepository
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

func (r *likeRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return count > 0, nil
}

// Like inserts the pair. A row that already exists is left untouched.
func (r *likeRepository) Like(ctx context.Context, userID, postID uint) error {
	like := models.Like{UserID: userID, PostID: postID, Liked: true}
	err := conn(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "post_id"}}, DoNothing: true}).
		Create(&like).Error
	if err != nil {
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

func (r *likeRepository) Unlike(ctx context.Context, userID, postID uint) error {
	err := conn(ctx, r.db).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{}).Error
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

// Count returns the live number of likes on a post.
func (r *likeRepository) Count(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := conn(ctx, r.db).
		Model(&models.Like{}).
		Where("post_id = ? AND liked = ?", postID, true).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return count, nil
}
