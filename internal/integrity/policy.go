package integrity

import (
	"sort"

	"github.com/timmy/facecheck/internal/domain"
)

// Precedence is one ordered rule of a tie-break policy. It returns a negative
// number when a should be kept over b, positive when b wins, and zero on a tie.
type Precedence[T any] struct {
	Name    string
	Compare func(a, b *T) int
}

// Policy is a declared, deterministic rule for choosing which duplicate to keep.
// Rules are applied in order; the row id resolves anything left tied.
type Policy[T any] struct {
	Name        string
	Description string
	Rules       []Precedence[T]
	ID          func(*T) int64
	// PreferHigherID makes the final id key pick the highest id instead of the lowest.
	PreferHigherID bool
}

// Resolve picks the row to keep from candidates. The discarded rows are
// returned in the policy's preference order. Candidates are not modified.
func Resolve[T any](candidates []T, p Policy[T]) (kept T, discarded []T) {
	if len(candidates) == 0 {
		return kept, nil
	}
	ordered := make([]T, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return p.compare(&ordered[i], &ordered[j]) < 0
	})
	return ordered[0], ordered[1:]
}

func (p Policy[T]) compare(a, b *T) int {
	for _, rule := range p.Rules {
		if c := rule.Compare(a, b); c != 0 {
			return c
		}
	}
	ia, ib := p.ID(a), p.ID(b)
	switch {
	case ia == ib:
		return 0
	case (ia < ib) != p.PreferHigherID:
		return -1
	default:
		return 1
	}
}

func preferTrue(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return -1
	default:
		return 1
	}
}

func preferHigher(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}

// preferHigherOptional ranks a missing value below any present value.
func preferHigherOptional(a, b *float64) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return preferHigher(*a, *b)
	}
}

// ObservationDedupPolicy keeps the most trustworthy observation of a (person, photo) pair.
var ObservationDedupPolicy = Policy[domain.FaceObservation]{
	Name:        "observation-dedup",
	Description: "verified first, then higher recognition confidence, then higher detection confidence, then earliest created",
	Rules: []Precedence[domain.FaceObservation]{
		{Name: "verified", Compare: func(a, b *domain.FaceObservation) int {
			return preferTrue(a.Verified, b.Verified)
		}},
		{Name: "recognition-confidence", Compare: func(a, b *domain.FaceObservation) int {
			return preferHigherOptional(a.RecognitionConfidence, b.RecognitionConfidence)
		}},
		{Name: "detection-confidence", Compare: func(a, b *domain.FaceObservation) int {
			return preferHigher(a.DetectionConfidence, b.DetectionConfidence)
		}},
		{Name: "earliest-created", Compare: func(a, b *domain.FaceObservation) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}},
	},
	ID: func(o *domain.FaceObservation) int64 { return o.ID },
}

// DescriptorDedupVerifiedPolicy keeps the oldest descriptor when the pair has a
// verified observation: the first embedding confirmed by an operator stays authoritative.
var DescriptorDedupVerifiedPolicy = Policy[domain.FaceDescriptor]{
	Name:        "descriptor-dedup-verified",
	Description: "pair has a verified observation: keep the oldest descriptor",
	Rules: []Precedence[domain.FaceDescriptor]{
		{Name: "oldest-created", Compare: func(a, b *domain.FaceDescriptor) int {
			return a.CreatedAt.Compare(b.CreatedAt)
		}},
	},
	ID: func(d *domain.FaceDescriptor) int64 { return d.ID },
}

// DescriptorDedupUnverifiedPolicy keeps the newest descriptor when no observation
// of the pair is verified, so the latest recognition result wins.
var DescriptorDedupUnverifiedPolicy = Policy[domain.FaceDescriptor]{
	Name:        "descriptor-dedup-unverified",
	Description: "no verified observation for the pair: keep the newest descriptor",
	Rules: []Precedence[domain.FaceDescriptor]{
		{Name: "newest-created", Compare: func(a, b *domain.FaceDescriptor) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		}},
	},
	ID:             func(d *domain.FaceDescriptor) int64 { return d.ID },
	PreferHigherID: true,
}

// descriptorPolicy selects the descriptor policy for a pair.
func descriptorPolicy(pairVerified bool) Policy[domain.FaceDescriptor] {
	if pairVerified {
		return DescriptorDedupVerifiedPolicy
	}
	return DescriptorDedupUnverifiedPolicy
}
