package integrity

import (
	"testing"

	"github.com/timmy/facecheck/internal/domain"
)

func TestObservationDedupPolicy(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.FaceObservation
		wantKept   int64
	}{
		{
			name: "verified beats higher confidence",
			candidates: []domain.FaceObservation{
				{ID: 1, RecognitionConfidence: conf(0.99), CreatedAt: at(0)},
				{ID: 2, Verified: true, RecognitionConfidence: conf(1), CreatedAt: at(5)},
			},
			wantKept: 2,
		},
		{
			name: "higher recognition confidence",
			candidates: []domain.FaceObservation{
				{ID: 1, RecognitionConfidence: conf(0.6), CreatedAt: at(0)},
				{ID: 2, RecognitionConfidence: conf(0.8), CreatedAt: at(1)},
			},
			wantKept: 2,
		},
		{
			name: "missing confidence ranks lowest",
			candidates: []domain.FaceObservation{
				{ID: 1, CreatedAt: at(0)},
				{ID: 2, RecognitionConfidence: conf(0.1), CreatedAt: at(1)},
			},
			wantKept: 2,
		},
		{
			name: "detection confidence breaks recognition tie",
			candidates: []domain.FaceObservation{
				{ID: 1, RecognitionConfidence: conf(0.7), DetectionConfidence: 0.8, CreatedAt: at(0)},
				{ID: 2, RecognitionConfidence: conf(0.7), DetectionConfidence: 0.95, CreatedAt: at(1)},
			},
			wantKept: 2,
		},
		{
			name: "earliest created",
			candidates: []domain.FaceObservation{
				{ID: 1, RecognitionConfidence: conf(0.7), CreatedAt: at(3)},
				{ID: 2, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
			},
			wantKept: 2,
		},
		{
			name: "lowest id on full tie",
			candidates: []domain.FaceObservation{
				{ID: 9, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
				{ID: 4, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
				{ID: 6, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
			},
			wantKept: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, discarded := Resolve(tt.candidates, ObservationDedupPolicy)
			if kept.ID != tt.wantKept {
				t.Errorf("kept = %d, want %d", kept.ID, tt.wantKept)
			}
			if len(discarded) != len(tt.candidates)-1 {
				t.Errorf("discarded %d rows, want %d", len(discarded), len(tt.candidates)-1)
			}
		})
	}
}

func TestDescriptorDedupPolicies(t *testing.T) {
	candidates := []domain.FaceDescriptor{
		{ID: 3, CreatedAt: at(2)},
		{ID: 1, CreatedAt: at(1)},
		{ID: 2, CreatedAt: at(1)},
		{ID: 4, CreatedAt: at(2)},
	}
	tests := []struct {
		name     string
		verified bool
		wantKept int64
	}{
		{name: "verified pair keeps oldest, lowest id", verified: true, wantKept: 1},
		{name: "unverified pair keeps newest, highest id", verified: false, wantKept: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, _ := Resolve(candidates, descriptorPolicy(tt.verified))
			if kept.ID != tt.wantKept {
				t.Errorf("kept = %d, want %d", kept.ID, tt.wantKept)
			}
		})
	}
}

func TestResolveIsOrderIndependent(t *testing.T) {
	a := []domain.FaceObservation{
		{ID: 5, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
		{ID: 2, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
		{ID: 8, RecognitionConfidence: conf(0.7), CreatedAt: at(1)},
	}
	b := []domain.FaceObservation{a[2], a[0], a[1]}

	keptA, discA := Resolve(a, ObservationDedupPolicy)
	keptB, discB := Resolve(b, ObservationDedupPolicy)
	if keptA.ID != keptB.ID {
		t.Fatalf("kept %d and %d for the same rows", keptA.ID, keptB.ID)
	}
	for i := range discA {
		if discA[i].ID != discB[i].ID {
			t.Errorf("discarded[%d] = %d vs %d", i, discA[i].ID, discB[i].ID)
		}
	}
	if a[0].ID != 5 {
		t.Error("Resolve modified its input")
	}
}

func TestResolveEmpty(t *testing.T) {
	kept, discarded := Resolve(nil, ObservationDedupPolicy)
	if kept.ID != 0 || discarded != nil {
		t.Errorf("Resolve(nil) = %+v, %v", kept, discarded)
	}
}
