package domain

import "time"

// Photo is a gallery image. Only metadata changes after upload.
type Photo struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StorageRef string    `gorm:"type:text;not null" json:"storage_ref"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	GalleryRef string    `gorm:"type:text;index:idx_photos_gallery" json:"gallery_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Photo.
func (Photo) TableName() string {
	return "photos"
}
