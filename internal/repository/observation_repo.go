package repository

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
)

// ObservationRepository handles face observation data operations.
type ObservationRepository struct {
	db *gorm.DB
}

// NewObservationRepository creates a new ObservationRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *ObservationRepository: repository instance bound to db.
func NewObservationRepository(db *gorm.DB) *ObservationRepository {
	return &ObservationRepository{db: db}
}

// Create inserts a new observation record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - obs: observation record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *ObservationRepository) Create(ctx context.Context, obs *domain.FaceObservation) error {
	return r.db.WithContext(ctx).Create(obs).Error
}

// ListAfter returns up to limit observations with id greater than afterID, ordered by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - afterID: keyset cursor; 0 starts from the beginning.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.FaceObservation: page of observations.
//   - error: non-nil if the query fails.
func (r *ObservationRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.FaceObservation, error) {
	var rows []domain.FaceObservation
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DeleteByIDs deletes observations by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: observation IDs to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *ObservationRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.FaceObservation{}).Error
}

// ApplyPatch updates the given observations with one parameterized statement.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: observation IDs to update.
//   - patch: fields to change.
// Returns:
//   - error: non-nil if the update fails.
func (r *ObservationRepository) ApplyPatch(ctx context.Context, ids []int64, patch domain.ObservationPatch) error {
	cols := patch.Columns()
	if len(ids) == 0 || len(cols) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.FaceObservation{}).
		Where("id IN ?", ids).
		UpdateColumns(cols).Error
}

// Reassign moves every observation of fromPersonIDs to toPersonID, clearing
// verification and setting recognition confidence.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - fromPersonIDs: persons whose observations move.
//   - toPersonID: target person.
//   - confidence: recognition confidence given to moved rows.
// Returns:
//   - int64: number of observations moved.
//   - error: non-nil if the update fails.
func (r *ObservationRepository) Reassign(ctx context.Context, fromPersonIDs []int64, toPersonID int64, confidence float64) (int64, error) {
	if len(fromPersonIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.FaceObservation{}).
		Where("person_id IN ?", fromPersonIDs).
		UpdateColumns(map[string]interface{}{
			"person_id":              toPersonID,
			"verified":               false,
			"recognition_confidence": confidence,
		})
	return res.RowsAffected, res.Error
}

// CountForPersons counts observations linked to any of personIDs.
func (r *ObservationRepository) CountForPersons(ctx context.Context, personIDs []int64) (int64, error) {
	if len(personIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.FaceObservation{}).
		Where("person_id IN ?", personIDs).
		Count(&count).Error
	return count, err
}

// UnlinkPerson nulls the person of every observation of personID.
// Unlinked rows lose verification and confidence.
func (r *ObservationRepository) UnlinkPerson(ctx context.Context, personID int64) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.FaceObservation{}).
		Where("person_id = ?", personID).
		UpdateColumns(map[string]interface{}{
			"person_id":              nil,
			"verified":               false,
			"recognition_confidence": nil,
		})
	return res.RowsAffected, res.Error
}
