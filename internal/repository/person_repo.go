package repository

import (
	"context"
	"fmt"

	"github.com/timmy/facecheck/internal/domain"
	"gorm.io/gorm"
)

// PersonRepository handles person data operations.
type PersonRepository struct {
	db *gorm.DB
}

// NewPersonRepository creates a new PersonRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *PersonRepository: repository instance bound to db.
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// Create inserts a new person record.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - person: person record to persist.
// Returns:
//   - error: non-nil if the insert fails.
func (r *PersonRepository) Create(ctx context.Context, person *domain.Person) error {
	return r.db.WithContext(ctx).Create(person).Error
}

// ListAfter returns up to limit persons with id greater than afterID, ordered by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - afterID: keyset cursor; 0 starts from the beginning.
//   - limit: maximum rows to return.
// Returns:
//   - []domain.Person: page of persons.
//   - error: non-nil if the query fails.
func (r *PersonRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]domain.Person, error) {
	var persons []domain.Person
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&persons).Error
	return persons, err
}

// GetByIDs retrieves the persons with the given ids. Missing ids are skipped.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: person IDs.
// Returns:
//   - []domain.Person: persons found, ordered by id.
//   - error: non-nil if the query fails.
func (r *PersonRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var persons []domain.Person
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&persons).Error
	return persons, err
}

// UpdateFields sets text columns of one person. Only mergeable columns are accepted.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: person ID.
//   - columns: column name to new value.
// Returns:
//   - error: non-nil for a non-mergeable column or a failed update.
func (r *PersonRepository) UpdateFields(ctx context.Context, id int64, columns map[string]string) error {
	if len(columns) == 0 {
		return nil
	}
	updates := make(map[string]interface{}, len(columns))
	for col, v := range columns {
		if !domain.IsMergeableColumn(col) {
			return fmt.Errorf("column %q is not mergeable", col)
		}
		updates[col] = v
	}
	return r.db.WithContext(ctx).Model(&domain.Person{}).Where("id = ?", id).Updates(updates).Error
}

// DeleteByIDs deletes persons by id.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ids: person IDs to delete.
// Returns:
//   - error: non-nil if the delete fails.
func (r *PersonRepository) DeleteByIDs(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&domain.Person{}).Error
}

// Count returns the number of persons.
func (r *PersonRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Person{}).Count(&count).Error
	return count, err
}
