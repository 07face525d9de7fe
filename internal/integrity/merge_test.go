package integrity

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/timmy/facecheck/internal/domain"
)

func TestMergePersonsSharedHandle(t *testing.T) {
	s := newMemStore()
	s.addPerson(domain.Person{ID: 1, DisplayName: "Alice", MessagingHandle: "@alice", CreatedAt: at(0)}).
		addPerson(domain.Person{ID: 2, MessagingHandle: " @ALICE", CreatedAt: at(1)}).
		addPhoto(10).addPhoto(11).
		addObservation(domain.FaceObservation{ID: 1, PhotoID: 10, PersonID: idPtr(1), Verified: true, RecognitionConfidence: conf(1), CreatedAt: at(0)}).
		addObservation(domain.FaceObservation{ID: 2, PhotoID: 11, PersonID: idPtr(2), Verified: true, RecognitionConfidence: conf(1), CreatedAt: at(0)}).
		addDescriptor(domain.FaceDescriptor{ID: 1, PersonID: idPtr(2), PhotoID: 11, EmbeddingData: testVector, CreatedAt: at(0)})
	engine, index := testEngine(s)
	ctx := context.Background()

	groups, err := engine.FindDuplicatePersons(ctx)
	if err != nil {
		t.Fatalf("FindDuplicatePersons() error = %v", err)
	}
	if len(groups) != 1 || groups[0].MatchField != "messaging handle" {
		t.Fatalf("groups = %+v", groups)
	}
	if !reflect.DeepEqual(groups[0].PersonIDs(), []int64{1, 2}) {
		t.Errorf("group ids = %v", groups[0].PersonIDs())
	}

	res, err := engine.MergePersons(ctx, 1, []int64{2})
	if err != nil {
		t.Fatalf("MergePersons() error = %v", err)
	}
	if res.MovedObservations != 1 || res.MovedDescriptors != 1 || res.DeletedCount != 1 {
		t.Errorf("result = %+v", res)
	}
	if !res.IndexRebuilt || index.calls != 1 {
		t.Errorf("index rebuilt = %v (calls %d)", res.IndexRebuilt, index.calls)
	}

	moved := s.observations[2]
	if moved.PersonID == nil || *moved.PersonID != 1 {
		t.Fatalf("observation 2 person = %v, want 1", moved.PersonID)
	}
	if moved.Verified {
		t.Error("reassigned observation is still verified")
	}
	if moved.RecognitionConfidence == nil || *moved.RecognitionConfidence != DefaultThresholds().MergeConfidence {
		t.Errorf("reassigned confidence = %v", moved.RecognitionConfidence)
	}
	if !s.observations[1].Verified {
		t.Error("kept person's own observation lost verification")
	}
	if _, ok := s.persons[2]; ok {
		t.Error("discarded person still exists")
	}

	groups, _ = engine.FindDuplicatePersons(ctx)
	if len(groups) != 0 {
		t.Errorf("groups after merge = %+v", groups)
	}
}

func TestMergeBackfillsEmptyFields(t *testing.T) {
	s := newMemStore()
	s.addPerson(domain.Person{ID: 1, DisplayName: "Kept", CreatedAt: at(0)}).
		addPerson(domain.Person{ID: 2, DisplayName: "Old", Email: "old@example.com", CreatedAt: at(1)}).
		addPerson(domain.Person{ID: 3, Email: "new@example.com", AvatarRef: "avatars/3.png", CreatedAt: at(2)})

	res, err := NewMergeExecutor(0.6).Merge(context.Background(), s, 1, []int64{3, 2, 3})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	kept := s.persons[1]
	if kept.DisplayName != "Kept" {
		t.Errorf("display name overwritten: %q", kept.DisplayName)
	}
	if kept.Email != "new@example.com" || kept.AvatarRef != "avatars/3.png" {
		t.Errorf("backfill = email %q avatar %q", kept.Email, kept.AvatarRef)
	}
	if !reflect.DeepEqual(res.MergedFields, []string{"avatar", "email"}) {
		t.Errorf("MergedFields = %v", res.MergedFields)
	}
	if res.DeletedCount != 2 || len(s.persons) != 1 {
		t.Errorf("deleted %d, remaining %d", res.DeletedCount, len(s.persons))
	}
}

func TestMergeConflicts(t *testing.T) {
	tests := []struct {
		name    string
		keep    int64
		discard []int64
	}{
		{name: "nothing to discard", keep: 1, discard: nil},
		{name: "keep listed for discard", keep: 1, discard: []int64{1, 2}},
		{name: "missing discard person", keep: 1, discard: []int64{2, 99}},
		{name: "missing kept person", keep: 98, discard: []int64{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newMemStore()
			s.addPerson(domain.Person{ID: 1}).addPerson(domain.Person{ID: 2}).addPhoto(10).
				addObservation(domain.FaceObservation{ID: 1, PhotoID: 10, PersonID: idPtr(2), Verified: true, RecognitionConfidence: conf(1)})

			_, err := NewMergeExecutor(0.6).Merge(context.Background(), s, tt.keep, tt.discard)
			var conflict *DuplicateConflict
			if !errors.As(err, &conflict) {
				t.Fatalf("error = %v, want DuplicateConflict", err)
			}
			if len(s.persons) != 2 || *s.observations[1].PersonID != 2 {
				t.Error("rejected merge changed the store")
			}
		})
	}
}

// lossyStore drops reassignments so the conservation check trips.
type lossyStore struct {
	*memStore
}

func (s lossyStore) ReassignObservations(context.Context, []int64, int64, float64) (int64, error) {
	return 0, nil
}

func (s lossyStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return s.memStore.WithinTx(ctx, func(tx Store) error {
		return fn(lossyStore{tx.(*memStore)})
	})
}

func TestMergeRollsBackOnLostObservations(t *testing.T) {
	s := newMemStore()
	s.addPerson(domain.Person{ID: 1}).addPerson(domain.Person{ID: 2}).addPhoto(10).
		addObservation(domain.FaceObservation{ID: 1, PhotoID: 10, PersonID: idPtr(2), RecognitionConfidence: conf(0.9)})

	_, err := NewMergeExecutor(0.6).Merge(context.Background(), lossyStore{s}, 1, []int64{2})
	var violation *InvariantViolation
	if !errors.As(err, &violation) {
		t.Fatalf("error = %v, want InvariantViolation", err)
	}
	if _, ok := s.persons[2]; !ok {
		t.Error("discarded person deleted despite rollback")
	}
}

func TestDeletePersonWithUnlink(t *testing.T) {
	s := newMemStore()
	s.addPerson(domain.Person{ID: 1}).addPerson(domain.Person{ID: 2}).addPhoto(10).
		addObservation(domain.FaceObservation{ID: 1, PhotoID: 10, PersonID: idPtr(1), Verified: true, RecognitionConfidence: conf(1)}).
		addObservation(domain.FaceObservation{ID: 2, PhotoID: 10, PersonID: idPtr(2), RecognitionConfidence: conf(0.8)}).
		addDescriptor(domain.FaceDescriptor{ID: 1, PersonID: idPtr(1), PhotoID: 10, EmbeddingData: testVector})
	engine, index := testEngine(s)
	ctx := context.Background()

	res, err := engine.DeletePersonWithUnlink(ctx, 1)
	if err != nil {
		t.Fatalf("DeletePersonWithUnlink() error = %v", err)
	}
	if res.UnlinkedObservations != 1 || res.DeletedDescriptors != 1 || !res.IndexRebuilt || index.calls != 1 {
		t.Errorf("result = %+v, index calls %d", res, index.calls)
	}
	o := s.observations[1]
	if o.PersonID != nil || o.Verified || o.RecognitionConfidence != nil {
		t.Errorf("observation not unlinked: %+v", o)
	}
	if _, ok := s.persons[1]; ok {
		t.Error("person still exists")
	}
	if *s.observations[2].PersonID != 2 {
		t.Error("other person's observation was touched")
	}

	report, _ := engine.RunIntegrityScan(ctx)
	if report.PerCategoryCounts[IssueDanglingPersonReference] != 0 {
		t.Error("delete left dangling person references")
	}

	if _, err := engine.DeletePersonWithUnlink(ctx, 1); !errors.Is(err, ErrPersonNotFound) {
		t.Errorf("second delete error = %v, want ErrPersonNotFound", err)
	}
}
