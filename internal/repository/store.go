package repository

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"gorm.io/gorm"
)

// Store exposes the gallery tables to the integrity engine.
type Store struct {
	db           *gorm.DB
	Persons      *PersonRepository
	Photos       *PhotoRepository
	Observations *ObservationRepository
	Descriptors  *DescriptorRepository
}

var _ integrity.Store = (*Store)(nil)

// NewStore creates a Store whose repositories share db.
// Parameters:
//   - db: GORM handle, either the root connection or a transaction.
// Returns:
//   - *Store: store bound to db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Persons:      NewPersonRepository(db),
		Photos:       NewPhotoRepository(db),
		Observations: NewObservationRepository(db),
		Descriptors:  NewDescriptorRepository(db),
	}
}

// WithinTx runs fn inside one database transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (s *Store) WithinTx(ctx context.Context, fn func(tx integrity.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) ListPersons(ctx context.Context, afterID int64, limit int) ([]domain.Person, error) {
	return s.Persons.ListAfter(ctx, afterID, limit)
}

func (s *Store) ListPhotos(ctx context.Context, afterID int64, limit int) ([]domain.Photo, error) {
	return s.Photos.ListAfter(ctx, afterID, limit)
}

func (s *Store) ListObservations(ctx context.Context, afterID int64, limit int) ([]domain.FaceObservation, error) {
	return s.Observations.ListAfter(ctx, afterID, limit)
}

func (s *Store) ListDescriptors(ctx context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error) {
	return s.Descriptors.ListAfter(ctx, afterID, limit)
}

func (s *Store) GetPersons(ctx context.Context, ids []int64) ([]domain.Person, error) {
	return s.Persons.GetByIDs(ctx, ids)
}

func (s *Store) UpdatePersonFields(ctx context.Context, id int64, columns map[string]string) error {
	return s.Persons.UpdateFields(ctx, id, columns)
}

func (s *Store) DeletePersons(ctx context.Context, ids []int64) error {
	return s.Persons.DeleteByIDs(ctx, ids)
}

func (s *Store) DeleteObservations(ctx context.Context, ids []int64) error {
	return s.Observations.DeleteByIDs(ctx, ids)
}

func (s *Store) UpdateObservations(ctx context.Context, ids []int64, patch domain.ObservationPatch) error {
	return s.Observations.ApplyPatch(ctx, ids, patch)
}

func (s *Store) ReassignObservations(ctx context.Context, from []int64, to int64, confidence float64) (int64, error) {
	return s.Observations.Reassign(ctx, from, to, confidence)
}

func (s *Store) CountObservationsForPersons(ctx context.Context, personIDs []int64) (int64, error) {
	return s.Observations.CountForPersons(ctx, personIDs)
}

func (s *Store) UnlinkObservationsForPerson(ctx context.Context, personID int64) (int64, error) {
	return s.Observations.UnlinkPerson(ctx, personID)
}

func (s *Store) ListDescriptorsForPerson(ctx context.Context, personID int64) ([]domain.FaceDescriptor, error) {
	return s.Descriptors.ListByPerson(ctx, personID)
}

func (s *Store) DeleteDescriptors(ctx context.Context, ids []int64) error {
	return s.Descriptors.DeleteByIDs(ctx, ids)
}

func (s *Store) DeleteDescriptorsForPerson(ctx context.Context, personID int64) (int64, error) {
	return s.Descriptors.DeleteByPerson(ctx, personID)
}

func (s *Store) UpdateDescriptorEmbedding(ctx context.Context, id int64, embedding []byte) error {
	return s.Descriptors.UpdateEmbedding(ctx, id, embedding)
}

func (s *Store) SetDescriptorsExcluded(ctx context.Context, ids []int64, excluded bool) error {
	return s.Descriptors.SetExcluded(ctx, ids, excluded)
}

func (s *Store) ReassignDescriptors(ctx context.Context, from []int64, to int64) (int64, error) {
	return s.Descriptors.Reassign(ctx, from, to)
}
