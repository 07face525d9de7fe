package integrity

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/timmy/facecheck/internal/domain"
)

func vec(v ...float32) []byte { return domain.EncodeEmbedding(v) }

// auditStore holds person 1 with three similar descriptors and one outlier,
// and person 2 with too few descriptors to audit.
func auditStore() *memStore {
	s := newMemStore()
	s.addPerson(domain.Person{ID: 1}).addPerson(domain.Person{ID: 2}).addPhoto(10)
	s.addDescriptor(domain.FaceDescriptor{ID: 1, PersonID: idPtr(1), PhotoID: 10, EmbeddingData: vec(1, 0, 0)}).
		addDescriptor(domain.FaceDescriptor{ID: 2, PersonID: idPtr(1), PhotoID: 10, EmbeddingData: vec(1, 0.1, 0)}).
		addDescriptor(domain.FaceDescriptor{ID: 3, PersonID: idPtr(1), PhotoID: 10, EmbeddingData: vec(0.9, 0.1, 0)}).
		addDescriptor(domain.FaceDescriptor{ID: 4, PersonID: idPtr(1), PhotoID: 10, EmbeddingData: vec(0, 0, 1)}).
		addDescriptor(domain.FaceDescriptor{ID: 5, PersonID: idPtr(2), PhotoID: 10, EmbeddingData: vec(1, 0, 0)}).
		addDescriptor(domain.FaceDescriptor{ID: 6, PersonID: idPtr(2), PhotoID: 10, EmbeddingData: vec(0, 1, 0)})
	return s
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 0}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCentroidSkipsOtherDimensions(t *testing.T) {
	got := Centroid([][]float32{{1, 0}, {0, 1}, {5, 5, 5}}, 2)
	if !reflect.DeepEqual(got, []float32{0.5, 0.5}) {
		t.Errorf("Centroid() = %v", got)
	}
}

func TestAuditFindsOutliers(t *testing.T) {
	s := auditStore()
	descriptors, _ := s.ListDescriptorsForPerson(context.Background(), 1)

	audit := NewConsistencyAuditor(3).Audit(1, descriptors, 0.5)
	if !audit.Eligible || audit.Considered != 4 {
		t.Fatalf("audit = %+v", audit)
	}
	if !reflect.DeepEqual(audit.OutlierIDs, []int64{4}) {
		t.Errorf("OutlierIDs = %v, want [4]", audit.OutlierIDs)
	}
	for _, sim := range audit.Similarities {
		if sim.DescriptorID != 4 && sim.Similarity < 0.9 {
			t.Errorf("descriptor %d similarity %.3f, want close to centroid", sim.DescriptorID, sim.Similarity)
		}
	}
}

func TestAuditSkipsUnusableDescriptors(t *testing.T) {
	descriptors := []domain.FaceDescriptor{
		{ID: 1, EmbeddingData: vec(1, 0, 0)},
		{ID: 2, EmbeddingData: vec(1, 0, 0)},
		{ID: 3, EmbeddingData: vec(1, 0, 0), Excluded: true},
		{ID: 4},
	}
	audit := NewConsistencyAuditor(3).Audit(7, descriptors, 0.5)
	if audit.Eligible || audit.Considered != 2 || len(audit.OutlierIDs) != 0 {
		t.Errorf("audit = %+v, want ineligible with 2 considered", audit)
	}
}

func TestAuditMismatchedDimensionIsOutlier(t *testing.T) {
	descriptors := []domain.FaceDescriptor{
		{ID: 1, EmbeddingData: vec(1, 0, 0)},
		{ID: 2, EmbeddingData: vec(1, 0, 0)},
		{ID: 3, EmbeddingData: vec(1, 0, 0)},
		{ID: 4, EmbeddingData: vec(1, 0)},
	}
	audit := NewConsistencyAuditor(3).Audit(7, descriptors, 0.5)
	if !reflect.DeepEqual(audit.OutlierIDs, []int64{4}) {
		t.Errorf("OutlierIDs = %v, want [4]", audit.OutlierIDs)
	}
}

func TestClearOutliersAndReinstate(t *testing.T) {
	s := auditStore()
	engine, index := testEngine(s)
	ctx := context.Background()

	cleared, err := engine.ClearOutliers(ctx, 1, 0)
	if err != nil {
		t.Fatalf("ClearOutliers() error = %v", err)
	}
	if !reflect.DeepEqual(cleared.ChangedIDs, []int64{4}) || !cleared.IndexRebuilt {
		t.Errorf("ClearOutliers() = %+v", cleared)
	}
	if !s.descriptors[4].Excluded {
		t.Fatal("outlier not excluded")
	}
	if _, ok := s.descriptors[4]; !ok {
		t.Fatal("outlier was deleted")
	}

	audit, err := engine.AuditPersonEmbeddings(ctx, 1, 0)
	if err != nil {
		t.Fatalf("AuditPersonEmbeddings() error = %v", err)
	}
	if audit.Considered != 3 || len(audit.OutlierIDs) != 0 {
		t.Errorf("audit after clear = %+v", audit)
	}

	reinstated, err := engine.ReinstateDescriptors(ctx, 1)
	if err != nil {
		t.Fatalf("ReinstateDescriptors() error = %v", err)
	}
	if reinstated.Count != 1 || s.descriptors[4].Excluded {
		t.Errorf("ReinstateDescriptors() = %+v", reinstated)
	}
	if index.calls != 2 {
		t.Errorf("index rebuilds = %d, want 2", index.calls)
	}

	if _, err := engine.ClearOutliers(ctx, 404, 0); !errors.Is(err, ErrPersonNotFound) {
		t.Errorf("unknown person error = %v", err)
	}
}

func TestMassAudit(t *testing.T) {
	s := auditStore()
	engine, index := testEngine(s)

	res, err := engine.MassAudit(context.Background(), 0)
	if err != nil {
		t.Fatalf("MassAudit() error = %v", err)
	}
	if res.Threshold != DefaultThresholds().OutlierThreshold {
		t.Errorf("Threshold = %v", res.Threshold)
	}
	want := []PersonAuditSummary{{PersonID: 1, Before: 4, After: 3, Excluded: 1}}
	if !reflect.DeepEqual(res.Persons, want) {
		t.Errorf("Persons = %+v, want %+v", res.Persons, want)
	}
	if res.TotalExcluded != 1 || !res.IndexRebuilt || index.calls != 1 {
		t.Errorf("result = %+v, index calls %d", res, index.calls)
	}
	if len(s.descriptors) != 6 {
		t.Error("mass audit deleted descriptors")
	}
}
