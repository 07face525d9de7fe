package integrity

import (
	"context"
	"fmt"

	"github.com/timmy/facecheck/internal/domain"
)

// pageFetcher reads one keyset page.
type pageFetcher[T any] func(ctx context.Context, afterID int64, limit int) ([]T, error)

// scanAll concatenates keyset pages until a page shorter than pageSize.
// Any page error aborts the scan with a PageFetchFailure; a partial result is never returned.
// maxRows bounds the accumulated rows; 0 disables the bound.
func scanAll[T any](ctx context.Context, entity Entity, pageSize, maxRows int, key func(*T) int64, fetch pageFetcher[T]) ([]T, error) {
	var (
		rows    []T
		afterID int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, &PageFetchFailure{Entity: entity, AfterID: afterID, Err: err}
		}
		page, err := fetch(ctx, afterID, pageSize)
		if err != nil {
			return nil, &PageFetchFailure{Entity: entity, AfterID: afterID, Err: err}
		}
		rows = append(rows, page...)
		if maxRows > 0 && len(rows) > maxRows {
			return nil, &PageFetchFailure{
				Entity:  entity,
				AfterID: afterID,
				Err:     fmt.Errorf("table exceeds %d rows held in memory", maxRows),
			}
		}
		if len(page) < pageSize {
			return rows, nil
		}
		next := key(&page[len(page)-1])
		if next <= afterID {
			return nil, &PageFetchFailure{
				Entity:  entity,
				AfterID: afterID,
				Err:     fmt.Errorf("page keys are not ascending (last id %d)", next),
			}
		}
		afterID = next
	}
}

// DatasetScanner reads full snapshots of each entity through a Store.
type DatasetScanner struct {
	store      Store
	thresholds Thresholds
}

// NewDatasetScanner creates a scanner reading pages of t.PageSize rows.
func NewDatasetScanner(store Store, t Thresholds) *DatasetScanner {
	return &DatasetScanner{store: store, thresholds: t.normalized()}
}

func (s *DatasetScanner) Persons(ctx context.Context) ([]domain.Person, error) {
	return scanAll(ctx, EntityPersons, s.thresholds.PageSize, s.thresholds.MaxRowsPerTable,
		func(p *domain.Person) int64 { return p.ID }, s.store.ListPersons)
}

func (s *DatasetScanner) Photos(ctx context.Context) ([]domain.Photo, error) {
	return scanAll(ctx, EntityPhotos, s.thresholds.PageSize, s.thresholds.MaxRowsPerTable,
		func(p *domain.Photo) int64 { return p.ID }, s.store.ListPhotos)
}

func (s *DatasetScanner) Observations(ctx context.Context) ([]domain.FaceObservation, error) {
	return scanAll(ctx, EntityObservations, s.thresholds.PageSize, s.thresholds.MaxRowsPerTable,
		func(o *domain.FaceObservation) int64 { return o.ID }, s.store.ListObservations)
}

func (s *DatasetScanner) Descriptors(ctx context.Context) ([]domain.FaceDescriptor, error) {
	return scanAll(ctx, EntityDescriptors, s.thresholds.PageSize, s.thresholds.MaxRowsPerTable,
		func(d *domain.FaceDescriptor) int64 { return d.ID }, s.store.ListDescriptors)
}
