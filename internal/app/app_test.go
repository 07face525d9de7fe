package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/logger"
	"github.com/timmy/facecheck/internal/service"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			Path:         filepath.Join(t.TempDir(), "gallery.db"),
			MaxIdleConns: 1,
			MaxOpenConns: 1,
			AutoMigrate:  true,
		},
		ML:    config.MLConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second},
		Index: config.IndexConfig{Provider: config.IndexProviderML},
		Integrity: config.IntegrityConfig{
			PageSize:          100,
			WriteChunkSize:    10,
			SampleLimit:       5,
			MaxRowsPerTable:   1000,
			DefaultConfidence: 0.5,
			MergeConfidence:   0.6,
			OutlierThreshold:  0.5,
			MinDescriptors:    3,
		},
	}
}

func TestNewWiresServiceAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), logger.New(&logger.Config{Level: "error", Output: io.Discard}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if err := a.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, ok := a.Rebuilder.(*service.MLClient); !ok {
		t.Errorf("Rebuilder = %T, want *service.MLClient", a.Rebuilder)
	}

	report, run, err := a.Service.RunScan(ctx)
	if err != nil {
		t.Fatalf("RunScan() error = %v", err)
	}
	if report.TotalIssues != 0 || run.ReportKey != "" {
		t.Errorf("empty dataset scan = %d issues, key %q", report.TotalIssues, run.ReportKey)
	}
	if report.Thresholds.PageSize != 100 {
		t.Errorf("PageSize = %d, want configured 100", report.Thresholds.PageSize)
	}
}
