package repository

import "testing"

// TestDescriptorPointIDDeterministic verifies that a descriptor always maps to the same point
func TestDescriptorPointIDDeterministic(t *testing.T) {
	testCases := []struct {
		name string
		id   int64
	}{
		{name: "first descriptor", id: 1},
		{name: "large id", id: 9_000_000_001},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			first := DescriptorPointID(tc.id)
			second := DescriptorPointID(tc.id)
			if first != second {
				t.Errorf("UUID mismatch: first=%s, second=%s", first, second)
			}
			if len(first) != 36 {
				t.Errorf("Invalid UUID length: got %d, want 36", len(first))
			}
		})
	}

	if DescriptorPointID(1) == DescriptorPointID(2) {
		t.Error("different descriptors share a point id")
	}
}
