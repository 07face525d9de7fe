package integrity

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
)

// Entity names a scanned table.
type Entity string

const (
	EntityPersons      Entity = "persons"
	EntityPhotos       Entity = "photos"
	EntityObservations Entity = "face_observations"
	EntityDescriptors  Entity = "face_descriptors"
)

// Store is the relational dataset the engine reads and repairs.
// List methods return rows with id greater than afterID in ascending id order.
// Bulk writes take the ids they affect and must be parameterized.
type Store interface {
	ListPersons(ctx context.Context, afterID int64, limit int) ([]domain.Person, error)
	ListPhotos(ctx context.Context, afterID int64, limit int) ([]domain.Photo, error)
	ListObservations(ctx context.Context, afterID int64, limit int) ([]domain.FaceObservation, error)
	ListDescriptors(ctx context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error)

	GetPersons(ctx context.Context, ids []int64) ([]domain.Person, error)
	UpdatePersonFields(ctx context.Context, id int64, columns map[string]string) error
	DeletePersons(ctx context.Context, ids []int64) error

	DeleteObservations(ctx context.Context, ids []int64) error
	UpdateObservations(ctx context.Context, ids []int64, patch domain.ObservationPatch) error
	ReassignObservations(ctx context.Context, fromPersonIDs []int64, toPersonID int64, confidence float64) (int64, error)
	CountObservationsForPersons(ctx context.Context, personIDs []int64) (int64, error)
	UnlinkObservationsForPerson(ctx context.Context, personID int64) (int64, error)

	ListDescriptorsForPerson(ctx context.Context, personID int64) ([]domain.FaceDescriptor, error)
	DeleteDescriptors(ctx context.Context, ids []int64) error
	DeleteDescriptorsForPerson(ctx context.Context, personID int64) (int64, error)
	UpdateDescriptorEmbedding(ctx context.Context, id int64, embedding []byte) error
	SetDescriptorsExcluded(ctx context.Context, ids []int64, excluded bool) error
	ReassignDescriptors(ctx context.Context, fromPersonIDs []int64, toPersonID int64) (int64, error)

	// WithinTx runs fn against a Store bound to one transaction.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// DescriptorGenerator recomputes a face embedding from a photo region.
type DescriptorGenerator interface {
	RegenerateDescriptor(ctx context.Context, photoRef string, box domain.BoundingBox) ([]float32, error)
}

// IndexRebuilder rebuilds the similarity index from non-excluded, person-linked descriptors.
type IndexRebuilder interface {
	RebuildIndex(ctx context.Context) error
}
