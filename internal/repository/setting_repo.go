package repository

import (
	"context"
	"errors"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SettingRepository stores operator overrides of configuration defaults.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new SettingRepository.
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// List returns every stored setting ordered by key.
func (r *SettingRepository) List(ctx context.Context) ([]domain.AppSetting, error) {
	var settings []domain.AppSetting
	err := r.db.WithContext(ctx).Order("key ASC").Find(&settings).Error
	return settings, err
}

// Get returns the setting for key, or nil when it is not set.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - key: setting key.
// Returns:
//   - *domain.AppSetting: stored setting, nil if absent.
//   - error: non-nil if the lookup fails.
func (r *SettingRepository) Get(ctx context.Context, key string) (*domain.AppSetting, error) {
	var setting domain.AppSetting
	err := r.db.WithContext(ctx).First(&setting, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &setting, nil
}

// Upsert creates or replaces the setting keyed by Key.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - setting: setting to store.
// Returns:
//   - error: non-nil if the upsert fails.
func (r *SettingRepository) Upsert(ctx context.Context, setting *domain.AppSetting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(setting).Error
}

// Delete removes the setting for key so the configured default applies again.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&domain.AppSetting{}).Error
}
