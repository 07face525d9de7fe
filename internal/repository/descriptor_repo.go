package repository

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
)

// DescriptorRepository handles face descriptor data operations.
type DescriptorRepository struct {
	db *gorm.DB
}

// NewDescriptorRepository creates a new DescriptorRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DescriptorRepository: repository instance bound to db.
func NewDescriptorRepository(db *gorm.DB) *DescriptorRepository {
	return &DescriptorRepository{db: db}
}

// Create inserts a new descriptor record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - desc: descriptor record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *DescriptorRepository) Create(ctx context.Context, desc *domain.FaceDescriptor) error {
	return r.db.WithContext(ctx).Create(desc).Error
}

// ListAfter returns up to limit descriptors with id greater than afterID, ordered by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - afterID: keyset cursor; 0 starts from the beginning.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.FaceDescriptor: page of descriptors.
//   - error: non-nil if the query fails.
func (r *DescriptorRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error) {
	var rows []domain.FaceDescriptor
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListIndexableAfter pages through descriptors that belong in the similarity
// index: person-linked, not excluded and carrying an embedding.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - afterID: keyset cursor; 0 starts from the beginning.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.FaceDescriptor: page of indexable descriptors.
//   - error: non-nil if the query fails.
func (r *DescriptorRepository) ListIndexableAfter(ctx context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error) {
	var rows []domain.FaceDescriptor
	err := r.db.WithContext(ctx).
		Where("id > ? AND person_id IS NOT NULL AND excluded = ? AND embedding_data IS NOT NULL AND length(embedding_data) >= 4", afterID, false).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListByPerson returns every descriptor of personID, excluded ones included.
func (r *DescriptorRepository) ListByPerson(ctx context.Context, personID int64) ([]domain.FaceDescriptor, error) {
	var rows []domain.FaceDescriptor
	err := r.db.WithContext(ctx).Where("person_id = ?", personID).Order("id ASC").Find(&rows).Error
	return rows, err
}

// DeleteByIDs deletes descriptors by id.
func (r *DescriptorRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.FaceDescriptor{}).Error
}

// DeleteByPerson deletes every descriptor of personID.
func (r *DescriptorRepository) DeleteByPerson(ctx context.Context, personID int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("person_id = ?", personID).Delete(&domain.FaceDescriptor{})
	return res.RowsAffected, res.Error
}

// UpdateEmbedding replaces the vector of one descriptor.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: descriptor ID.
//   - embedding: encoded vector bytes.
// Returns:
//   - error: non-nil if the update fails or no row matched.
func (r *DescriptorRepository) UpdateEmbedding(ctx context.Context, id int64, embedding []byte) error {
	res := r.db.WithContext(ctx).Model(&domain.FaceDescriptor{}).
		Where("id = ?", id).
		UpdateColumn("embedding_data", embedding)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetExcluded sets the excluded flag on the given descriptors.
func (r *DescriptorRepository) SetExcluded(ctx context.Context, ids []int64, excluded bool) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&domain.FaceDescriptor{}).
		Where("id IN ?", ids).
		UpdateColumn("excluded", excluded).Error
}

// Reassign moves every descriptor of fromPersonIDs to toPersonID.
func (r *DescriptorRepository) Reassign(ctx context.Context, fromPersonIDs []int64, toPersonID int64) (int64, error) {
	if len(fromPersonIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&domain.FaceDescriptor{}).
		Where("person_id IN ?", fromPersonIDs).
		UpdateColumn("person_id", toPersonID)
	return res.RowsAffected, res.Error
}
