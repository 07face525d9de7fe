package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/repository"
)

type fakeSource struct {
	rows  []domain.FaceDescriptor
	calls int
}

func (s *fakeSource) ListIndexableAfter(_ context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error) {
	s.calls++
	var page []domain.FaceDescriptor
	for _, d := range s.rows {
		if d.ID > afterID && len(page) < limit {
			page = append(page, d)
		}
	}
	return page, nil
}

type fakeIndex struct {
	dim       int
	recreated int
	points    []repository.DescriptorPoint
	err       error
}

func (f *fakeIndex) RecreateCollection(context.Context) error {
	f.recreated++
	return f.err
}

func (f *fakeIndex) UpsertDescriptors(_ context.Context, points []repository.DescriptorPoint) error {
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeIndex) Dimension() int { return f.dim }

func testLogger() *logger.Logger {
	return logger.New(&logger.Config{Level: "error", Output: io.Discard})
}

func indexedDescriptor(id, personID int64, vector ...float32) domain.FaceDescriptor {
	d := domain.FaceDescriptor{ID: id, PersonID: &personID, PhotoID: id * 10}
	d.SetEmbedding(vector)
	return d
}

func TestQdrantIndexRebuilderPages(t *testing.T) {
	source := &fakeSource{rows: []domain.FaceDescriptor{
		indexedDescriptor(1, 7, 1, 0),
		indexedDescriptor(2, 7, 0, 1),
		indexedDescriptor(3, 8, 1, 0, 0),
		indexedDescriptor(4, 8, 1, 1),
		indexedDescriptor(5, 9, 0.5, 0.5),
	}}
	index := &fakeIndex{dim: 2}

	stats, err := NewQdrantIndexRebuilder(source, index, 2, testLogger()).Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if stats.Indexed != 4 || stats.Skipped != 1 {
		t.Errorf("stats = %+v, want 4 indexed and 1 skipped", stats)
	}
	if index.recreated != 1 {
		t.Errorf("RecreateCollection calls = %d", index.recreated)
	}
	if source.calls != 3 {
		t.Errorf("page reads = %d, want 3", source.calls)
	}
	for _, p := range index.points {
		if p.DescriptorID == 3 {
			t.Error("descriptor with wrong dimension was indexed")
		}
	}
	if index.points[0].PersonID != 7 || index.points[0].PhotoID != 10 {
		t.Errorf("first point = %+v", index.points[0])
	}
}

func TestQdrantIndexRebuilderCollectionFailure(t *testing.T) {
	index := &fakeIndex{dim: 2, err: errors.New("connection refused")}
	err := NewQdrantIndexRebuilder(&fakeSource{}, index, 10, testLogger()).RebuildIndex(context.Background())

	var unavailable *integrity.CollaboratorUnavailable
	if !errors.As(err, &unavailable) || unavailable.Service != "qdrant" {
		t.Fatalf("RebuildIndex() error = %v, want qdrant CollaboratorUnavailable", err)
	}
}
