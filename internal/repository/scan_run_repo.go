package repository

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
)

// ScanRunRepository records integrity scan history.
type ScanRunRepository struct {
	db *gorm.DB
}

// NewScanRunRepository creates a new ScanRunRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ScanRunRepository: repository instance bound to db.
func NewScanRunRepository(db *gorm.DB) *ScanRunRepository {
	return &ScanRunRepository{db: db}
}

// Create inserts a new scan run record.
func (r *ScanRunRepository) Create(ctx context.Context, run *domain.ScanRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves an existing scan run record.
func (r *ScanRunRepository) Update(ctx context.Context, run *domain.ScanRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// GetByID retrieves a scan run by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: scan ID.
// Returns:
//   - *domain.ScanRun: scan run if found.
//   - error: gorm.ErrRecordNotFound when absent, or the query error.
func (r *ScanRunRepository) GetByID(ctx context.Context, id string) (*domain.ScanRun, error) {
	var run domain.ScanRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRecent retrieves the most recent scan runs, optionally filtered by status.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - status: status filter; empty returns all.
//   - limit: maximum number of runs.
//   - offset: number of runs to skip.
// Returns:
//   - []domain.ScanRun: runs ordered newest first.
//   - error: non-nil if the query fails.
func (r *ScanRunRepository) ListRecent(ctx context.Context, status domain.ScanRunStatus, limit, offset int) ([]domain.ScanRun, error) {
	var runs []domain.ScanRun
	q := r.db.WithContext(ctx).Model(&domain.ScanRun{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Order("started_at DESC").Limit(limit).Offset(offset).Find(&runs).Error
	return runs, err
}

// ListArchived retrieves runs that still have an archived report, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - limit: maximum number of runs.
//   - offset: number of archived runs to skip.
// Returns:
//   - []domain.ScanRun: runs with a non-empty report key.
//   - error: non-nil if the query fails.
func (r *ScanRunRepository) ListArchived(ctx context.Context, limit, offset int) ([]domain.ScanRun, error) {
	var runs []domain.ScanRun
	err := r.db.WithContext(ctx).
		Where("report_key <> ?", "").
		Order("started_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&runs).Error
	return runs, err
}
