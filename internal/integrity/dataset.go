package integrity

import (
	"context"

	"github.com/timmy/facecheck/internal/domain"
)

// pairKey is the (person, photo) key shared by observations and descriptors.
// A nil person is represented by hasPerson=false.
type pairKey struct {
	personID  int64
	hasPerson bool
	photoID   int64
}

func newPairKey(personID *int64, photoID int64) pairKey {
	if personID == nil {
		return pairKey{photoID: photoID}
	}
	return pairKey{personID: *personID, hasPerson: true, photoID: photoID}
}

// dataset holds the snapshots loaded for one operation plus lazily built indexes.
// Each entity is loaded at most once; a failed load is remembered so every
// check depending on it reports the same failure.
type dataset struct {
	scanner *DatasetScanner

	persons      []domain.Person
	photos       []domain.Photo
	observations []domain.FaceObservation
	descriptors  []domain.FaceDescriptor

	loaded map[Entity]bool
	failed map[Entity]error

	personIDs    map[int64]struct{}
	photoByID    map[int64]*domain.Photo
	obsByPair    map[pairKey][]*domain.FaceObservation
	obsByPhoto   map[int64][]*domain.FaceObservation
	obsPersonIDs map[int64]struct{}
	descPersons  map[int64]struct{}
}

func newDataset(scanner *DatasetScanner) *dataset {
	return &dataset{
		scanner: scanner,
		loaded:  make(map[Entity]bool),
		failed:  make(map[Entity]error),
	}
}

// ensure loads the given entities, returning the first failure.
func (d *dataset) ensure(ctx context.Context, entities ...Entity) error {
	for _, e := range entities {
		if err, ok := d.failed[e]; ok {
			return err
		}
		if d.loaded[e] {
			continue
		}
		if err := d.load(ctx, e); err != nil {
			d.failed[e] = err
			return err
		}
		d.loaded[e] = true
	}
	return nil
}

func (d *dataset) load(ctx context.Context, e Entity) error {
	var err error
	switch e {
	case EntityPersons:
		d.persons, err = d.scanner.Persons(ctx)
	case EntityPhotos:
		d.photos, err = d.scanner.Photos(ctx)
	case EntityObservations:
		d.observations, err = d.scanner.Observations(ctx)
	case EntityDescriptors:
		d.descriptors, err = d.scanner.Descriptors(ctx)
	}
	return err
}

func (d *dataset) stats() DatasetStats {
	s := DatasetStats{}
	if d.loaded[EntityPersons] {
		s.Persons = len(d.persons)
	}
	if d.loaded[EntityPhotos] {
		s.Photos = len(d.photos)
	}
	if d.loaded[EntityObservations] {
		s.Observations = len(d.observations)
	}
	if d.loaded[EntityDescriptors] {
		s.Descriptors = len(d.descriptors)
	}
	return s
}

func (d *dataset) personIDSet() map[int64]struct{} {
	if d.personIDs == nil {
		d.personIDs = make(map[int64]struct{}, len(d.persons))
		for i := range d.persons {
			d.personIDs[d.persons[i].ID] = struct{}{}
		}
	}
	return d.personIDs
}

func (d *dataset) photoIndex() map[int64]*domain.Photo {
	if d.photoByID == nil {
		d.photoByID = make(map[int64]*domain.Photo, len(d.photos))
		for i := range d.photos {
			d.photoByID[d.photos[i].ID] = &d.photos[i]
		}
	}
	return d.photoByID
}

// observationIndexes builds the pair, photo and person indexes in one pass.
func (d *dataset) observationIndexes() {
	if d.obsByPair != nil {
		return
	}
	d.obsByPair = make(map[pairKey][]*domain.FaceObservation, len(d.observations))
	d.obsByPhoto = make(map[int64][]*domain.FaceObservation)
	d.obsPersonIDs = make(map[int64]struct{})
	for i := range d.observations {
		o := &d.observations[i]
		k := newPairKey(o.PersonID, o.PhotoID)
		d.obsByPair[k] = append(d.obsByPair[k], o)
		d.obsByPhoto[o.PhotoID] = append(d.obsByPhoto[o.PhotoID], o)
		if o.PersonID != nil {
			d.obsPersonIDs[*o.PersonID] = struct{}{}
		}
	}
}

func (d *dataset) observationsForPair(k pairKey) []*domain.FaceObservation {
	d.observationIndexes()
	return d.obsByPair[k]
}

func (d *dataset) observationsOnPhoto(photoID int64) []*domain.FaceObservation {
	d.observationIndexes()
	return d.obsByPhoto[photoID]
}

func (d *dataset) personHasObservations(personID int64) bool {
	d.observationIndexes()
	_, ok := d.obsPersonIDs[personID]
	return ok
}

func (d *dataset) personHasDescriptors(personID int64) bool {
	if d.descPersons == nil {
		d.descPersons = make(map[int64]struct{})
		for i := range d.descriptors {
			if p := d.descriptors[i].PersonID; p != nil {
				d.descPersons[*p] = struct{}{}
			}
		}
	}
	_, ok := d.descPersons[personID]
	return ok
}

// pairVerified reports whether any observation of the pair is verified.
func (d *dataset) pairVerified(k pairKey) bool {
	for _, o := range d.observationsForPair(k) {
		if o.Verified {
			return true
		}
	}
	return false
}
