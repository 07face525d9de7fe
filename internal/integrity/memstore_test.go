package integrity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/timmy/facecheck/internal/domain"
)

// memStore is an in-memory Store for engine tests. failList makes listing an
// entity fail once afterID reaches the given value; failWrite makes writes
// touching the given ids fail.
type memStore struct {
	persons      map[int64]domain.Person
	photos       map[int64]domain.Photo
	observations map[int64]domain.FaceObservation
	descriptors  map[int64]domain.FaceDescriptor

	failList  map[Entity]int64
	failWrite map[int64]bool
	listCalls map[Entity]int
}

func newMemStore() *memStore {
	return &memStore{
		persons:      make(map[int64]domain.Person),
		photos:       make(map[int64]domain.Photo),
		observations: make(map[int64]domain.FaceObservation),
		descriptors:  make(map[int64]domain.FaceDescriptor),
		failList:     make(map[Entity]int64),
		failWrite:    make(map[int64]bool),
		listCalls:    make(map[Entity]int),
	}
}

var errInjected = errors.New("injected failure")

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return baseTime.Add(time.Duration(minutes) * time.Minute) }

func idPtr(id int64) *int64 { return &id }

func (s *memStore) addPerson(p domain.Person) *memStore {
	s.persons[p.ID] = p
	return s
}

func (s *memStore) addPhoto(id int64) *memStore {
	s.photos[id] = domain.Photo{ID: id, StorageRef: fmt.Sprintf("photos/%d.jpg", id), CreatedAt: at(0)}
	return s
}

func (s *memStore) addObservation(o domain.FaceObservation) *memStore {
	s.observations[o.ID] = o
	return s
}

func (s *memStore) addDescriptor(d domain.FaceDescriptor) *memStore {
	s.descriptors[d.ID] = d
	return s
}

func page[T any](rows map[int64]T, afterID int64, limit int) []T {
	ids := make([]int64, 0, len(rows))
	for id := range rows {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = rows[id]
	}
	return out
}

func (s *memStore) listFailure(e Entity, afterID int64) error {
	s.listCalls[e]++
	if from, ok := s.failList[e]; ok && afterID >= from {
		return errInjected
	}
	return nil
}

func (s *memStore) writeFailure(ids []int64) error {
	for _, id := range ids {
		if s.failWrite[id] {
			return errInjected
		}
	}
	return nil
}

func (s *memStore) ListPersons(_ context.Context, afterID int64, limit int) ([]domain.Person, error) {
	if err := s.listFailure(EntityPersons, afterID); err != nil {
		return nil, err
	}
	return page(s.persons, afterID, limit), nil
}

func (s *memStore) ListPhotos(_ context.Context, afterID int64, limit int) ([]domain.Photo, error) {
	if err := s.listFailure(EntityPhotos, afterID); err != nil {
		return nil, err
	}
	return page(s.photos, afterID, limit), nil
}

func (s *memStore) ListObservations(_ context.Context, afterID int64, limit int) ([]domain.FaceObservation, error) {
	if err := s.listFailure(EntityObservations, afterID); err != nil {
		return nil, err
	}
	return page(s.observations, afterID, limit), nil
}

func (s *memStore) ListDescriptors(_ context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error) {
	if err := s.listFailure(EntityDescriptors, afterID); err != nil {
		return nil, err
	}
	return page(s.descriptors, afterID, limit), nil
}

func (s *memStore) GetPersons(_ context.Context, ids []int64) ([]domain.Person, error) {
	var out []domain.Person
	for _, id := range ids {
		if p, ok := s.persons[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) UpdatePersonFields(_ context.Context, id int64, columns map[string]string) error {
	p, ok := s.persons[id]
	if !ok {
		return ErrPersonNotFound
	}
	for col, v := range columns {
		switch col {
		case "display_name":
			p.DisplayName = v
		case "avatar_ref":
			p.AvatarRef = v
		case "messaging_handle":
			p.MessagingHandle = v
		case "messaging_profile_url":
			p.MessagingProfileURL = v
		case "social_profile_url":
			p.SocialProfileURL = v
		case "alt_social_profile_url":
			p.AltSocialProfileURL = v
		case "email":
			p.Email = v
		default:
			return errors.New("column not mergeable: " + col)
		}
	}
	s.persons[id] = p
	return nil
}

func (s *memStore) DeletePersons(_ context.Context, ids []int64) error {
	if err := s.writeFailure(ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.persons, id)
	}
	return nil
}

func (s *memStore) DeleteObservations(_ context.Context, ids []int64) error {
	if err := s.writeFailure(ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.observations, id)
	}
	return nil
}

func (s *memStore) UpdateObservations(_ context.Context, ids []int64, patch domain.ObservationPatch) error {
	if err := s.writeFailure(ids); err != nil {
		return err
	}
	for _, id := range ids {
		o, ok := s.observations[id]
		if !ok {
			continue
		}
		patch.Apply(&o)
		s.observations[id] = o
	}
	return nil
}

func (s *memStore) ReassignObservations(_ context.Context, from []int64, to int64, confidence float64) (int64, error) {
	set := toSet(from)
	var n int64
	for id, o := range s.observations {
		if o.PersonID != nil && set[*o.PersonID] {
			o.PersonID = idPtr(to)
			o.Verified = false
			c := confidence
			o.RecognitionConfidence = &c
			s.observations[id] = o
			n++
		}
	}
	return n, nil
}

func (s *memStore) CountObservationsForPersons(_ context.Context, personIDs []int64) (int64, error) {
	set := toSet(personIDs)
	var n int64
	for _, o := range s.observations {
		if o.PersonID != nil && set[*o.PersonID] {
			n++
		}
	}
	return n, nil
}

func (s *memStore) UnlinkObservationsForPerson(_ context.Context, personID int64) (int64, error) {
	var n int64
	for id, o := range s.observations {
		if o.PersonID != nil && *o.PersonID == personID {
			o.PersonID = nil
			o.Verified = false
			o.RecognitionConfidence = nil
			s.observations[id] = o
			n++
		}
	}
	return n, nil
}

func (s *memStore) ListDescriptorsForPerson(_ context.Context, personID int64) ([]domain.FaceDescriptor, error) {
	var out []domain.FaceDescriptor
	for _, d := range page(s.descriptors, 0, len(s.descriptors)) {
		if d.PersonID != nil && *d.PersonID == personID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *memStore) DeleteDescriptors(_ context.Context, ids []int64) error {
	if err := s.writeFailure(ids); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.descriptors, id)
	}
	return nil
}

func (s *memStore) DeleteDescriptorsForPerson(_ context.Context, personID int64) (int64, error) {
	var n int64
	for id, d := range s.descriptors {
		if d.PersonID != nil && *d.PersonID == personID {
			delete(s.descriptors, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpdateDescriptorEmbedding(_ context.Context, id int64, embedding []byte) error {
	if err := s.writeFailure([]int64{id}); err != nil {
		return err
	}
	d, ok := s.descriptors[id]
	if !ok {
		return errors.New("descriptor not found")
	}
	d.EmbeddingData = embedding
	s.descriptors[id] = d
	return nil
}

func (s *memStore) SetDescriptorsExcluded(_ context.Context, ids []int64, excluded bool) error {
	if err := s.writeFailure(ids); err != nil {
		return err
	}
	for _, id := range ids {
		if d, ok := s.descriptors[id]; ok {
			d.Excluded = excluded
			s.descriptors[id] = d
		}
	}
	return nil
}

func (s *memStore) ReassignDescriptors(_ context.Context, from []int64, to int64) (int64, error) {
	set := toSet(from)
	var n int64
	for id, d := range s.descriptors {
		if d.PersonID != nil && set[*d.PersonID] {
			d.PersonID = idPtr(to)
			s.descriptors[id] = d
			n++
		}
	}
	return n, nil
}

// WithinTx runs fn on a copy and only commits it when fn succeeds.
func (s *memStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	tx := s.clone()
	if err := fn(tx); err != nil {
		return err
	}
	s.persons, s.photos, s.observations, s.descriptors = tx.persons, tx.photos, tx.observations, tx.descriptors
	return nil
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	for k, v := range s.persons {
		c.persons[k] = v
	}
	for k, v := range s.photos {
		c.photos[k] = v
	}
	for k, v := range s.observations {
		c.observations[k] = v
	}
	for k, v := range s.descriptors {
		c.descriptors[k] = v
	}
	c.failList, c.failWrite, c.listCalls = s.failList, s.failWrite, s.listCalls
	return c
}

func toSet(ids []int64) map[int64]bool {
	set := make(map[int64]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// countingIndex records rebuild calls.
type countingIndex struct {
	calls int
	err   error
}

func (c *countingIndex) RebuildIndex(context.Context) error {
	c.calls++
	return c.err
}

// stubGenerator returns a fixed vector or error.
type stubGenerator struct {
	vector []float32
	err    error
	calls  []string
}

func (g *stubGenerator) RegenerateDescriptor(_ context.Context, photoRef string, _ domain.BoundingBox) ([]float32, error) {
	g.calls = append(g.calls, photoRef)
	return g.vector, g.err
}

func testEngine(store *memStore) (*Engine, *countingIndex) {
	index := &countingIndex{}
	t := DefaultThresholds()
	t.PageSize = 2 // force several pages on small fixtures
	return NewEngine(store, StaticConfig(t), &stubGenerator{vector: []float32{1, 0, 0}}, index), index
}
