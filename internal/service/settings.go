package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/timmy/facecheck/internal/config"
	"github.com/timmy/facecheck/internal/domain"
	"github.com/timmy/facecheck/internal/integrity"
	"github.com/timmy/facecheck/internal/logger"
)

// ErrUnknownSetting is returned for keys that do not name a threshold.
var ErrUnknownSetting = errors.New("unknown setting")

// ErrInvalidSetting is returned when a value cannot be parsed or is out of range.
var ErrInvalidSetting = errors.New("invalid setting value")

// SettingStore persists operator overrides.
type SettingStore interface {
	List(ctx context.Context) ([]domain.AppSetting, error)
	Upsert(ctx context.Context, setting *domain.AppSetting) error
	Delete(ctx context.Context, key string) error
}

// settingKey binds a stored key to one threshold field.
type settingKey struct {
	get func(*integrity.Thresholds) string
	set func(*integrity.Thresholds, string) error
}

func intSetting(min int, field func(*integrity.Thresholds) *int) settingKey {
	return settingKey{
		get: func(t *integrity.Thresholds) string { return strconv.Itoa(*field(t)) },
		set: func(t *integrity.Thresholds, raw string) error {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("%q is not an integer: %w", raw, ErrInvalidSetting)
			}
			if v < min {
				return fmt.Errorf("%d is below %d: %w", v, min, ErrInvalidSetting)
			}
			*field(t) = v
			return nil
		},
	}
}

func ratioSetting(field func(*integrity.Thresholds) *float64) settingKey {
	return settingKey{
		get: func(t *integrity.Thresholds) string { return strconv.FormatFloat(*field(t), 'g', -1, 64) },
		set: func(t *integrity.Thresholds, raw string) error {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("%q is not a number: %w", raw, ErrInvalidSetting)
			}
			if v < 0 || v > 1 {
				return fmt.Errorf("%v is outside [0, 1]: %w", v, ErrInvalidSetting)
			}
			*field(t) = v
			return nil
		},
	}
}

var settingKeys = map[string]settingKey{
	"page_size":          intSetting(1, func(t *integrity.Thresholds) *int { return &t.PageSize }),
	"write_chunk_size":   intSetting(1, func(t *integrity.Thresholds) *int { return &t.WriteChunkSize }),
	"sample_limit":       intSetting(1, func(t *integrity.Thresholds) *int { return &t.SampleLimit }),
	"max_rows_per_table": intSetting(0, func(t *integrity.Thresholds) *int { return &t.MaxRowsPerTable }),
	"min_descriptors":    intSetting(1, func(t *integrity.Thresholds) *int { return &t.MinDescriptors }),
	"default_confidence": ratioSetting(func(t *integrity.Thresholds) *float64 { return &t.DefaultConfidence }),
	"merge_confidence":   ratioSetting(func(t *integrity.Thresholds) *float64 { return &t.MergeConfidence }),
	"outlier_threshold":  ratioSetting(func(t *integrity.Thresholds) *float64 { return &t.OutlierThreshold }),
}

// SettingView is one threshold as shown to operators.
type SettingView struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Default    string `json:"default"`
	Overridden bool   `json:"overridden"`
}

// ThresholdsFromConfig converts configured defaults to an engine snapshot.
func ThresholdsFromConfig(cfg config.IntegrityConfig) integrity.Thresholds {
	return integrity.Thresholds{
		PageSize:          cfg.PageSize,
		WriteChunkSize:    cfg.WriteChunkSize,
		SampleLimit:       cfg.SampleLimit,
		MaxRowsPerTable:   cfg.MaxRowsPerTable,
		DefaultConfidence: cfg.DefaultConfidence,
		MergeConfidence:   cfg.MergeConfidence,
		OutlierThreshold:  cfg.OutlierThreshold,
		MinDescriptors:    cfg.MinDescriptors,
	}
}

// SettingsProvider serves thresholds from configured defaults overlaid with
// stored overrides. The merged snapshot is cached until Invalidate or a write.
type SettingsProvider struct {
	store    SettingStore
	defaults integrity.Thresholds
	logger   *logger.Logger

	mu     sync.RWMutex
	cached *integrity.Thresholds
}

var _ integrity.ConfigProvider = (*SettingsProvider)(nil)

// NewSettingsProvider creates a provider.
// Parameters:
//   - store: settings table access.
//   - defaults: values used for keys without an override.
//   - log: logger instance.
// Returns:
//   - *SettingsProvider: initialized provider with an empty cache.
func NewSettingsProvider(store SettingStore, defaults integrity.Thresholds, log *logger.Logger) *SettingsProvider {
	return &SettingsProvider{store: store, defaults: defaults, logger: log}
}

// Thresholds implements integrity.ConfigProvider.
func (p *SettingsProvider) Thresholds(ctx context.Context) (integrity.Thresholds, error) {
	p.mu.RLock()
	if p.cached != nil {
		t := *p.cached
		p.mu.RUnlock()
		return t, nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != nil {
		return *p.cached, nil
	}
	t, _, err := p.load(ctx)
	if err != nil {
		return integrity.Thresholds{}, err
	}
	p.cached = &t
	return t, nil
}

// load overlays stored overrides on the defaults. Unparseable stored values
// are logged and ignored.
func (p *SettingsProvider) load(ctx context.Context) (integrity.Thresholds, map[string]bool, error) {
	settings, err := p.store.List(ctx)
	if err != nil {
		return integrity.Thresholds{}, nil, fmt.Errorf("load settings: %w", err)
	}
	t := p.defaults
	overridden := make(map[string]bool, len(settings))
	for _, s := range settings {
		key, ok := settingKeys[s.Key]
		if !ok {
			continue
		}
		if err := key.set(&t, s.Value); err != nil {
			p.logger.WithField(logger.FieldComponent, "settings").
				Warnf("Ignoring stored setting %s: %v", s.Key, err)
			continue
		}
		overridden[s.Key] = true
	}
	return t, overridden, nil
}

// Invalidate drops the cached snapshot so the next read reloads the table.
func (p *SettingsProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

// Update validates and stores an override.
func (p *SettingsProvider) Update(ctx context.Context, key, value string) error {
	k, ok := settingKeys[key]
	if !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	probe := p.defaults
	if err := k.set(&probe, value); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	setting := &domain.AppSetting{Key: key, Value: value, UpdatedAt: time.Now()}
	if err := p.store.Upsert(ctx, setting); err != nil {
		return fmt.Errorf("store setting %s: %w", key, err)
	}
	p.Invalidate()
	logger.CtxInfo(ctx, "Setting %s updated to %s", key, value)
	return nil
}

// Reset removes an override so the configured default applies.
func (p *SettingsProvider) Reset(ctx context.Context, key string) error {
	if _, ok := settingKeys[key]; !ok {
		return fmt.Errorf("%q: %w", key, ErrUnknownSetting)
	}
	if err := p.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	p.Invalidate()
	return nil
}

// List returns every threshold with its effective and default value, sorted by key.
func (p *SettingsProvider) List(ctx context.Context) ([]SettingView, error) {
	t, overridden, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]SettingView, 0, len(settingKeys))
	for name, key := range settingKeys {
		views = append(views, SettingView{
			Key:        name,
			Value:      key.get(&t),
			Default:    key.get(&p.defaults),
			Overridden: overridden[name],
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Key < views[j].Key })
	return views, nil
}
