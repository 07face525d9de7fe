package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := repository.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// countingStore counts List calls to observe caching.
type countingStore struct {
	SettingStore
	lists int
}

func (s *countingStore) List(ctx context.Context) ([]domain.AppSetting, error) {
	s.lists++
	return s.SettingStore.List(ctx)
}

func TestSettingsProviderOverridesAndCache(t *testing.T) {
	db := newTestDB(t)
	store := &countingStore{SettingStore: repository.NewSettingRepository(db)}
	provider := NewSettingsProvider(store, integrity.DefaultThresholds(), testLogger())
	ctx := context.Background()

	first, err := provider.Thresholds(ctx)
	if err != nil {
		t.Fatalf("Thresholds() error = %v", err)
	}
	if first != integrity.DefaultThresholds() {
		t.Errorf("Thresholds() = %+v, want defaults", first)
	}
	if _, err := provider.Thresholds(ctx); err != nil {
		t.Fatal(err)
	}
	if store.lists != 1 {
		t.Errorf("List calls = %d, want 1 (cached)", store.lists)
	}

	if err := provider.Update(ctx, "outlier_threshold", "0.7"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if err := provider.Update(ctx, "page_size", "250"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := provider.Thresholds(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.OutlierThreshold != 0.7 || got.PageSize != 250 {
		t.Errorf("Thresholds() after update = %+v", got)
	}

	if err := provider.Reset(ctx, "page_size"); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	got, _ = provider.Thresholds(ctx)
	if got.PageSize != integrity.DefaultThresholds().PageSize {
		t.Errorf("PageSize after reset = %d", got.PageSize)
	}
}

func TestSettingsProviderRejectsBadValues(t *testing.T) {
	provider := NewSettingsProvider(repository.NewSettingRepository(newTestDB(t)), integrity.DefaultThresholds(), testLogger())
	tests := []struct {
		key, value string
		want       error
	}{
		{key: "shoe_size", value: "9", want: ErrUnknownSetting},
		{key: "page_size", value: "many", want: ErrInvalidSetting},
		{key: "page_size", value: "0", want: ErrInvalidSetting},
		{key: "merge_confidence", value: "1.5", want: ErrInvalidSetting},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			err := provider.Update(context.Background(), tt.key, tt.value)
			if !errors.Is(err, tt.want) {
				t.Errorf("Update() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSettingsProviderIgnoresCorruptStoredValue(t *testing.T) {
	db := newTestDB(t)
	repo := repository.NewSettingRepository(db)
	ctx := context.Background()
	if err := repo.Upsert(ctx, &domain.AppSetting{Key: "sample_limit", Value: "lots"}); err != nil {
		t.Fatal(err)
	}
	provider := NewSettingsProvider(repo, integrity.DefaultThresholds(), testLogger())

	got, err := provider.Thresholds(ctx)
	if err != nil {
		t.Fatalf("Thresholds() error = %v", err)
	}
	if got.SampleLimit != integrity.DefaultThresholds().SampleLimit {
		t.Errorf("SampleLimit = %d, want default", got.SampleLimit)
	}

	views, err := provider.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(views) != 8 {
		t.Fatalf("List() returned %d settings, want 8", len(views))
	}
	for _, v := range views {
		if v.Overridden {
			t.Errorf("%s reported as overridden", v.Key)
		}
	}
}
