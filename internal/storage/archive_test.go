package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
)

type memObjects map[string][]byte

func (m memObjects) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m[key] = data
	return nil
}

func (m memObjects) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m memObjects) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

func (m memObjects) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m[key]
	return ok, nil
}

func TestReportArchiveRoundTrip(t *testing.T) {
	objects := memObjects{}
	archive := NewReportArchive(objects, "reports")
	ctx := context.Background()

	key, err := archive.Put(ctx, "scan-1", map[string]int{"total_issues": 3})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if key != "reports/scan-1.json" {
		t.Errorf("key = %q", key)
	}
	raw, err := archive.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(raw) != `{"total_issues":3}` {
		t.Errorf("Get() = %s", raw)
	}

	if _, err := archive.Get(ctx, "reports/missing.json"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get(missing) error = %v", err)
	}

	if err := archive.Remove(ctx, key); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, ok := objects[key]; ok {
		t.Error("report still stored after Remove()")
	}
	if _, err := archive.Get(ctx, key); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Get(removed) error = %v", err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		useSSL   bool
		want     string
	}{
		{endpoint: "localhost:9000", want: "http://localhost:9000"},
		{endpoint: "https://abc.r2.cloudflarestorage.com/bucket", useSSL: true, want: "https://abc.r2.cloudflarestorage.com"},
		{endpoint: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := endpointURL(tt.endpoint, tt.useSSL); got != tt.want {
				t.Errorf("endpointURL(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
	if detectStorageType("https://abc.r2.cloudflarestorage.com") != StorageTypeR2 {
		t.Error("R2 endpoint not detected")
	}
}
