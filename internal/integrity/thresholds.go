package integrity

import "context"

// Thresholds is the snapshot of tunables an operation runs with.
// Every component of a single operation reads the same snapshot.
type Thresholds struct {
	PageSize          int     `json:"page_size"`
	WriteChunkSize    int     `json:"write_chunk_size"`
	SampleLimit       int     `json:"sample_limit"`
	MaxRowsPerTable   int     `json:"max_rows_per_table"` // 0 disables the bound
	DefaultConfidence float64 `json:"default_confidence"`
	MergeConfidence   float64 `json:"merge_confidence"`
	OutlierThreshold  float64 `json:"outlier_threshold"`
	MinDescriptors    int     `json:"min_descriptors"`
}

// DefaultThresholds returns the values used when nothing else is configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PageSize:          1000,
		WriteChunkSize:    100,
		SampleLimit:       20,
		MaxRowsPerTable:   200000,
		DefaultConfidence: 0.5,
		MergeConfidence:   0.6,
		OutlierThreshold:  0.5,
		MinDescriptors:    3,
	}
}

// normalized replaces unusable values with defaults.
func (t Thresholds) normalized() Thresholds {
	d := DefaultThresholds()
	if t.PageSize <= 0 {
		t.PageSize = d.PageSize
	}
	if t.WriteChunkSize <= 0 {
		t.WriteChunkSize = d.WriteChunkSize
	}
	if t.SampleLimit <= 0 {
		t.SampleLimit = d.SampleLimit
	}
	if t.MinDescriptors <= 0 {
		t.MinDescriptors = d.MinDescriptors
	}
	return t
}

// ConfigProvider supplies thresholds. Implementations cache their values and
// expose explicit invalidation; the engine asks once per operation.
type ConfigProvider interface {
	Thresholds(ctx context.Context) (Thresholds, error)
}

// StaticConfig is a ConfigProvider returning fixed values.
type StaticConfig Thresholds

// Thresholds implements ConfigProvider.
func (s StaticConfig) Thresholds(context.Context) (Thresholds, error) {
	return Thresholds(s), nil
}
