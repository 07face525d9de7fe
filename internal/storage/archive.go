package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
)

// ErrObjectNotFound is returned when a requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ReportArchive keeps full scan reports as JSON objects under a key prefix.
// The scan run table only stores the key.
type ReportArchive struct {
	store  ObjectStorage
	prefix string
}

// NewReportArchive creates an archive writing under prefix.
func NewReportArchive(store ObjectStorage, prefix string) *ReportArchive {
	return &ReportArchive{store: store, prefix: prefix}
}

// Key returns the object key of a scan report.
func (a *ReportArchive) Key(scanID string) string {
	return path.Join(a.prefix, scanID+".json")
}

// Put stores report and returns its key.
func (a *ReportArchive) Put(ctx context.Context, scanID string, report any) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	key := a.Key(scanID)
	if err := a.store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), "application/json"); err != nil {
		return "", err
	}
	return key, nil
}

// Get returns the raw JSON report stored under key.
func (a *ReportArchive) Get(ctx context.Context, key string) (json.RawMessage, error) {
	ok, err := a.store.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	rc, err := a.store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", key, err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("report %s is not valid JSON", key)
	}
	return data, nil
}

// Remove deletes the report stored under key.
func (a *ReportArchive) Remove(ctx context.Context, key string) error {
	return a.store.Delete(ctx, key)
}
