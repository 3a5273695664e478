package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"quill/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error)
	ListByTag(ctx context.Context, tag string, viewerID uint) ([]*models.Post, error)
	Search(ctx context.Context, query string, viewerID uint) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	Exists(ctx context.Context, id uint) (bool, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := conn(ctx, r.db).Create(post).Error; err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.applyPostDetails(conn(ctx, r.db), viewerID).
		Where("posts.id = ?", id).
		Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, fmt.Errorf("get post %d: %w", id, err)
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit, offset int, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(conn(ctx, r.db), viewerID).
		Order("posts.created DESC, posts.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

func (r *postRepository) ListByTag(ctx context.Context, tag string, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(conn(ctx, r.db), viewerID).
		Joins("JOIN post_tags ON post_tags.post_id = posts.id").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("tags.name = ?", tag).
		Order("posts.created DESC, posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("list posts by tag %q: %w", tag, err)
	}
	return posts, nil
}

func (r *postRepository) Search(ctx context.Context, query string, viewerID uint) ([]*models.Post, error) {
	var posts []*models.Post
	err := r.applyPostDetails(conn(ctx, r.db), viewerID).
		Where(`LOWER(posts.title) LIKE ? ESCAPE '\'`, containsPattern(strings.ToLower(query))).
		Order("posts.created DESC, posts.id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	return posts, nil
}

// applyPostDetails selects the post row together with its derived fields. Counts, the
// first image and the author's avatar come from the related tables on every read.
func (r *postRepository) applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, users.username AS username, users.avatar_path AS avatar, " +
		"(SELECT COUNT(*) FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.liked = ?) AS likes_count, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
		"(SELECT images.image_path FROM images WHERE images.post_id = posts.id ORDER BY images.id LIMIT 1) AS image"

	db = db.Model(&models.Post{}).Joins("JOIN users ON users.id = posts.author_id")
	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM post_likes WHERE post_likes.post_id = posts.id AND post_likes.user_id = ?) AS liked", true, viewerID)
	}
	return db.Select(selectQuery+", false AS liked", true)
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	res := conn(ctx, r.db).Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{"title": post.Title, "body": post.Body})
	if res.Error != nil {
		return fmt.Errorf("update post %d: %w", post.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", post.ID)
	}
	return nil
}

// Delete removes the post and the rows that hang off it. Each statement commits on its own.
// Tags stay behind even when no other post uses them.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	db := conn(ctx, r.db)
	dependents := []struct {
		table string
		model interface{}
	}{
		{"post_tags", &models.PostTag{}},
		{"post_likes", &models.Like{}},
		{"comments", &models.Comment{}},
		{"images", &models.Image{}},
	}
	for _, dep := range dependents {
		if err := db.Where("post_id = ?", id).Delete(dep.model).Error; err != nil {
			return fmt.Errorf("delete %s of post %d: %w", dep.table, id, err)
		}
	}

	res := db.Delete(&models.Post{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

func (r *postRepository) Exists(ctx context.Context, id uint) (bool, error) {
	var count int64
	if err := conn(ctx, r.db).Model(&models.Post{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check post %d: %w", id, err)
	}
	return count > 0, nil
}
