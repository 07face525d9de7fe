package domain

import (
	"math"
	"time"
)

// BoundingBox locates a face region on a photo.
type BoundingBox struct {
	X      float64 `gorm:"column:bbox_x" json:"x"`
	Y      float64 `gorm:"column:bbox_y" json:"y"`
	Width  float64 `gorm:"column:bbox_w" json:"w"`
	Height float64 `gorm:"column:bbox_h" json:"h"`
}

// FaceObservation is a detected face on a photo, optionally linked to a person.
// A verified observation carries recognition confidence 1.0 and at most one
// observation exists per (person, photo) pair.
type FaceObservation struct {
	ID                    int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	PhotoID               int64       `gorm:"not null;index:idx_observations_photo" json:"photo_id"`
	PersonID              *int64      `gorm:"index:idx_observations_person" json:"person_id"`
	Box                   BoundingBox `gorm:"embedded" json:"bbox"`
	DetectionConfidence   float64     `gorm:"not null;default:0" json:"detection_confidence"`
	RecognitionConfidence *float64    `json:"recognition_confidence"`
	Verified              bool        `gorm:"not null;default:false" json:"verified"`
	CreatedAt             time.Time   `json:"created_at"`
}

// TableName returns the database table name for FaceObservation.
func (FaceObservation) TableName() string {
	return "face_observations"
}

// FaceDescriptor is the embedding of one (person, photo) pair used to build
// the similarity index. Excluded descriptors stay in the table but are never indexed.
type FaceDescriptor struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID      *int64    `gorm:"index:idx_descriptors_person" json:"person_id"`
	PhotoID       int64     `gorm:"not null;index:idx_descriptors_photo" json:"photo_id"`
	EmbeddingData []byte    `gorm:"column:embedding_data" json:"-"` // little-endian float32 vector
	Excluded      bool      `gorm:"not null;default:false" json:"excluded"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName returns the database table name for FaceDescriptor.
func (FaceDescriptor) TableName() string {
	return "face_descriptors"
}

// HasEmbedding reports whether the descriptor carries a vector.
func (d *FaceDescriptor) HasEmbedding() bool {
	return len(d.EmbeddingData) >= 4
}

// GetEmbedding converts the BLOB data to []float32
func (d *FaceDescriptor) GetEmbedding() []float32 {
	return DecodeEmbedding(d.EmbeddingData)
}

// SetEmbedding converts []float32 to BLOB data
func (d *FaceDescriptor) SetEmbedding(embedding []float32) {
	d.EmbeddingData = EncodeEmbedding(embedding)
}

// DecodeEmbedding reads a little-endian float32 vector. Trailing bytes are ignored.
func DecodeEmbedding(data []byte) []float32 {
	if len(data) < 4 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		offset := i * 4
		bits := uint32(data[offset]) |
			uint32(data[offset+1])<<8 |
			uint32(data[offset+2])<<16 |
			uint32(data[offset+3])<<24
		embedding[i] = math.Float32frombits(bits)
	}
	return embedding
}

// EncodeEmbedding writes a float32 vector as little-endian bytes. Empty input yields nil.
func EncodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	data := make([]byte, len(embedding)*4)
	for i, val := range embedding {
		offset := i * 4
		bits := math.Float32bits(val)
		data[offset] = byte(bits)
		data[offset+1] = byte(bits >> 8)
		data[offset+2] = byte(bits >> 16)
		data[offset+3] = byte(bits >> 24)
	}
	return data
}

// ObservationPatch describes a field update applied to a set of observations.
// Nil fields are left untouched.
type ObservationPatch struct {
	ClearPerson           bool
	Verified              *bool
	RecognitionConfidence *float64
	ClearConfidence       bool
}

// Columns renders the patch as a column map for a parameterized update.
func (p ObservationPatch) Columns() map[string]interface{} {
	cols := make(map[string]interface{}, 3)
	if p.ClearPerson {
		cols["person_id"] = nil
	}
	if p.Verified != nil {
		cols["verified"] = *p.Verified
	}
	if p.ClearConfidence {
		cols["recognition_confidence"] = nil
	} else if p.RecognitionConfidence != nil {
		cols["recognition_confidence"] = *p.RecognitionConfidence
	}
	return cols
}

// Apply mutates o the same way the column update does.
func (p ObservationPatch) Apply(o *FaceObservation) {
	if p.ClearPerson {
		o.PersonID = nil
	}
	if p.Verified != nil {
		o.Verified = *p.Verified
	}
	if p.ClearConfidence {
		o.RecognitionConfidence = nil
	} else if p.RecognitionConfidence != nil {
		v := *p.RecognitionConfidence
		o.RecognitionConfidence = &v
	}
}
