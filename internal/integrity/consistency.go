package integrity

import (
	"math"
	"sort"

	"github.com/timmy/facecheck/internal/domain"
)

// DescriptorSimilarity is the cosine similarity of one descriptor to its person's centroid.
type DescriptorSimilarity struct {
	DescriptorID int64   `json:"descriptor_id"`
	PhotoID      int64   `json:"photo_id"`
	Similarity   float64 `json:"similarity"`
	Outlier      bool    `json:"outlier"`
}

// EmbeddingAudit is the consistency audit of one person's descriptors.
type EmbeddingAudit struct {
	PersonID     int64                  `json:"person_id"`
	Threshold    float64                `json:"threshold"`
	Eligible     bool                   `json:"eligible"`
	Considered   int                    `json:"considered"`
	Similarities []DescriptorSimilarity `json:"similarities"`
	OutlierIDs   []int64                `json:"outlier_ids"`
}

// ConsistencyAuditor finds descriptors far from their person's centroid.
type ConsistencyAuditor struct {
	minDescriptors int
}

// NewConsistencyAuditor creates an auditor that skips persons with fewer than
// minDescriptors usable descriptors.
func NewConsistencyAuditor(minDescriptors int) *ConsistencyAuditor {
	if minDescriptors < 1 {
		minDescriptors = 1
	}
	return &ConsistencyAuditor{minDescriptors: minDescriptors}
}

// Audit scores the non-excluded descriptors with a vector. Descriptors whose
// dimension differs from the majority are scored 0 and always reported as outliers.
func (a *ConsistencyAuditor) Audit(personID int64, descriptors []domain.FaceDescriptor, threshold float64) *EmbeddingAudit {
	audit := &EmbeddingAudit{PersonID: personID, Threshold: threshold, Similarities: []DescriptorSimilarity{}, OutlierIDs: []int64{}}

	type scored struct {
		desc   *domain.FaceDescriptor
		vector []float32
	}
	var usable []scored
	for i := range descriptors {
		d := &descriptors[i]
		if d.Excluded || !d.HasEmbedding() {
			continue
		}
		usable = append(usable, scored{desc: d, vector: d.GetEmbedding()})
	}
	audit.Considered = len(usable)
	if len(usable) < a.minDescriptors {
		return audit
	}
	audit.Eligible = true

	vectors := make([][]float32, len(usable))
	for i, u := range usable {
		vectors[i] = u.vector
	}
	dim := majorityDimension(vectors)
	centroid := Centroid(vectors, dim)

	for _, u := range usable {
		sim := 0.0
		if len(u.vector) == dim {
			sim = CosineSimilarity(u.vector, centroid)
		}
		s := DescriptorSimilarity{DescriptorID: u.desc.ID, PhotoID: u.desc.PhotoID, Similarity: sim, Outlier: sim < threshold}
		audit.Similarities = append(audit.Similarities, s)
		if s.Outlier {
			audit.OutlierIDs = append(audit.OutlierIDs, u.desc.ID)
		}
	}
	sort.Slice(audit.Similarities, func(i, j int) bool {
		return audit.Similarities[i].DescriptorID < audit.Similarities[j].DescriptorID
	})
	sort.Slice(audit.OutlierIDs, func(i, j int) bool { return audit.OutlierIDs[i] < audit.OutlierIDs[j] })
	return audit
}

func majorityDimension(vectors [][]float32) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, v := range vectors {
		counts[len(v)]++
		if c := counts[len(v)]; c > bestCount || (c == bestCount && len(v) < best) {
			best, bestCount = len(v), c
		}
	}
	return best
}

// Centroid returns the mean of the vectors of length dim.
func Centroid(vectors [][]float32, dim int) []float32 {
	sum := make([]float64, dim)
	n := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
		n++
	}
	centroid := make([]float32, dim)
	if n == 0 {
		return centroid
	}
	for i := range sum {
		centroid[i] = float32(sum[i] / float64(n))
	}
	return centroid
}

// CosineSimilarity calculates cosine similarity between two vectors.
// Mismatched lengths and zero vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
