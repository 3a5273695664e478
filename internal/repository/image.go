package repository

import (
	"context"
	"fmt"

	"quill/internal/models"

	"gorm.io/gorm"
)

// ImageRepository defines storage operations for post images.
type ImageRepository interface {
	Create(ctx context.Context, image *models.Image) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a repository implementation for image metadata.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *models.Image) error {
	if err := conn(ctx, r.db).Create(image).Error; err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}
