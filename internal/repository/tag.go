package repository

import (
	"context"
	"errors"
	"fmt"

	"quill/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository manages tags and their links to posts.
type TagRepository interface {
	GetOrCreate(ctx context.Context, name string) (*models.Tag, error)
	Link(ctx context.Context, postID, tagID uint) error
	UnlinkAll(ctx context.Context, postID uint) error
	NamesByPost(ctx context.Context, postIDs []uint) (map[uint][]string, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository creates a new TagRepository
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate returns the tag called name, inserting it first if needed. A concurrent
// insert of the same name is absorbed by the unique index.
func (r *tagRepository) GetOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	db := conn(ctx, r.db)

	var tag models.Tag
	err := db.Where("name = ?", name).Take(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find tag %q: %w", name, err)
	}

	tag = models.Tag{Name: name}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag).Error; err != nil {
		return nil, fmt.Errorf("create tag %q: %w", name, err)
	}
	if tag.ID != 0 {
		return &tag, nil
	}

	if err := db.Where("name = ?", name).Take(&tag).Error; err != nil {
		return nil, fmt.Errorf("reload tag %q: %w", name, err)
	}
	return &tag, nil
}

func (r *tagRepository) Link(ctx context.Context, postID, tagID uint) error {
	link := models.PostTag{PostID: postID, TagID: tagID}
	if err := conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error; err != nil {
		return fmt.Errorf("link post %d to tag %d: %w", postID, tagID, err)
	}
	return nil
}

func (r *tagRepository) UnlinkAll(ctx context.Context, postID uint) error {
	if err := conn(ctx, r.db).Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return fmt.Errorf("unlink tags of post %d: %w", postID, err)
	}
	return nil
}

// NamesByPost returns the tag names of each post, sorted by name.
func (r *tagRepository) NamesByPost(ctx context.Context, postIDs []uint) (map[uint][]string, error) {
	out := make(map[uint][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		PostID uint
		Name   string
	}
	err := conn(ctx, r.db).Table("post_tags").
		Select("post_tags.post_id, tags.name").
		Joins("JOIN tags ON tags.id = post_tags.tag_id").
		Where("post_tags.post_id IN ?", postIDs).
		Order("tags.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}

	for _, row := range rows {
		out[row.PostID] = append(out[row.PostID], row.Name)
	}
	return out, nil
}
