package service

import (
	"context"
	"fmt"
	"time"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/metrics"
	"github.com/timmy/facecheck/internal/repository"
)

// IndexableSource pages through descriptors that belong in the similarity index.
type IndexableSource interface {
	ListIndexableAfter(ctx context.Context, afterID int64, limit int) ([]domain.FaceDescriptor, error)
}

// DescriptorIndex is a vector collection that can be rebuilt from scratch.
type DescriptorIndex interface {
	RecreateCollection(ctx context.Context) error
	UpsertDescriptors(ctx context.Context, points []repository.DescriptorPoint) error
	Dimension() int
}

// RebuildStats summarizes one index rebuild.
type RebuildStats struct {
	Indexed    int   `json:"indexed"`
	Skipped    int   `json:"skipped"`
	DurationMs int64 `json:"duration_ms"`
}

// QdrantIndexRebuilder rebuilds a Qdrant collection directly from the relational
// descriptors, for deployments where the ML service does not own the index.
type QdrantIndexRebuilder struct {
	source    IndexableSource
	index     DescriptorIndex
	batchSize int
	logger    *logger.Logger
}

var _ integrity.IndexRebuilder = (*QdrantIndexRebuilder)(nil)

// NewQdrantIndexRebuilder creates a rebuilder.
// Parameters:
//   - source: descriptor repository providing indexable rows.
//   - index: Qdrant repository receiving the points.
//   - batchSize: rows read and upserted per page; <= 0 uses 500.
//   - log: logger instance.
// Returns:
//   - *QdrantIndexRebuilder: initialized rebuilder.
func NewQdrantIndexRebuilder(source IndexableSource, index DescriptorIndex, batchSize int, log *logger.Logger) *QdrantIndexRebuilder {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &QdrantIndexRebuilder{source: source, index: index, batchSize: batchSize, logger: log}
}

// RebuildIndex implements integrity.IndexRebuilder.
func (r *QdrantIndexRebuilder) RebuildIndex(ctx context.Context) error {
	_, err := r.Rebuild(ctx)
	return err
}

// Rebuild drops the collection and reloads every person-linked, non-excluded
// descriptor. Vectors whose dimension does not match the collection are skipped.
func (r *QdrantIndexRebuilder) Rebuild(ctx context.Context) (*RebuildStats, error) {
	start := time.Now()
	stats, err := r.rebuild(ctx)
	metrics.RecordIndexRebuild(err == nil)
	if err != nil {
		return nil, &integrity.CollaboratorUnavailable{Service: "qdrant", Operation: "rebuild index", Err: err}
	}
	stats.DurationMs = time.Since(start).Milliseconds()

	logger.With(logger.Fields{
		logger.FieldComponent:  "index",
		logger.FieldCount:      stats.Indexed,
		logger.FieldDurationMs: stats.DurationMs,
	}).Info(ctx, "Similarity index rebuilt, %d descriptors skipped", stats.Skipped)
	return stats, nil
}

func (r *QdrantIndexRebuilder) rebuild(ctx context.Context) (*RebuildStats, error) {
	if err := r.index.RecreateCollection(ctx); err != nil {
		return nil, err
	}

	stats := &RebuildStats{}
	dim := r.index.Dimension()
	var afterID int64
	for {
		rows, err := r.source.ListIndexableAfter(ctx, afterID, r.batchSize)
		if err != nil {
			return nil, fmt.Errorf("list descriptors after %d: %w", afterID, err)
		}
		if len(rows) == 0 {
			return stats, nil
		}

		points := make([]repository.DescriptorPoint, 0, len(rows))
		for i := range rows {
			d := &rows[i]
			vector := d.GetEmbedding()
			if d.PersonID == nil || len(vector) != dim {
				r.logger.WithField(logger.FieldComponent, "index").
					Warnf("Skipping descriptor %d: %d dimensions, collection expects %d", d.ID, len(vector), dim)
				stats.Skipped++
				continue
			}
			points = append(points, repository.DescriptorPoint{
				DescriptorID: d.ID,
				PersonID:     *d.PersonID,
				PhotoID:      d.PhotoID,
				Vector:       vector,
			})
		}
		if err := r.index.UpsertDescriptors(ctx, points); err != nil {
			return nil, err
		}
		stats.Indexed += len(points)
		afterID = rows[len(rows)-1].ID

		if len(rows) < r.batchSize {
			return stats, nil
		}
	}
}
