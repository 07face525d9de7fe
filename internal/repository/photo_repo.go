package repository

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
)

// PhotoRepository reads photo metadata. Photos are never modified by reconciliation.
type PhotoRepository struct {
	db *gorm.DB
}

// NewPhotoRepository creates a new PhotoRepository.
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

// Create inserts a new photo record.
func (r *PhotoRepository) Create(ctx context.Context, photo *domain.Photo) error {
	return r.db.WithContext(ctx).Create(photo).Error
}

// ListAfter returns up to limit photos with id greater than afterID, ordered by id.
func (r *PhotoRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Photo, error) {
	var photos []domain.Photo
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&photos).Error
	return photos, err
}
