package domain

import (
	"strings"
	"time"
)

// Person is an identity record for one human shown in gallery photos.
// Observations and descriptors reference it through PersonID.
type Person struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DisplayName         string    `gorm:"type:text" json:"display_name"`
	MessagingHandle     string    `gorm:"type:text;index:idx_persons_messaging_handle" json:"messaging_handle,omitempty"`
	MessagingProfileURL string    `gorm:"type:text" json:"messaging_profile_url,omitempty"`
	SocialProfileURL    string    `gorm:"type:text" json:"social_profile_url,omitempty"`
	AltSocialProfileURL string    `gorm:"type:text" json:"alt_social_profile_url,omitempty"`
	Email               string    `gorm:"type:text;index:idx_persons_email" json:"email,omitempty"`
	AvatarRef           string    `gorm:"type:text" json:"avatar_ref,omitempty"`
	Hidden              bool      `gorm:"not null;default:false" json:"hidden"`
	Searchable          bool      `gorm:"not null;default:true" json:"searchable"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TableName returns the database table name for Person.
// Parameters: none.
// Returns:
//   - string: table name for GORM mapping.
func (Person) TableName() string {
	return "persons"
}

// PersonField describes one text column of Person that can be compared or merged.
type PersonField struct {
	Label  string // operator-facing name, reported as the duplicate match field
	Column string // database column, the only names accepted by field updates
	Get    func(*Person) string
}

// Value returns the field value of p.
func (f PersonField) Value(p *Person) string {
	return f.Get(p)
}

// IdentityFields are the external identifier fields used for duplicate detection,
// in the order they are evaluated.
var IdentityFields = []PersonField{
	{Label: "messaging handle", Column: "messaging_handle", Get: func(p *Person) string { return p.MessagingHandle }},
	{Label: "messaging profile URL", Column: "messaging_profile_url", Get: func(p *Person) string { return p.MessagingProfileURL }},
	{Label: "social profile URL", Column: "social_profile_url", Get: func(p *Person) string { return p.SocialProfileURL }},
	{Label: "alternate social profile URL", Column: "alt_social_profile_url", Get: func(p *Person) string { return p.AltSocialProfileURL }},
	{Label: "email", Column: "email", Get: func(p *Person) string { return p.Email }},
}

// MergeableFields are backfilled on the kept record during a merge when empty.
var MergeableFields = append([]PersonField{
	{Label: "display name", Column: "display_name", Get: func(p *Person) string { return p.DisplayName }},
	{Label: "avatar", Column: "avatar_ref", Get: func(p *Person) string { return p.AvatarRef }},
}, IdentityFields...)

// IsMergeableColumn reports whether column may be written by a merge backfill.
func IsMergeableColumn(column string) bool {
	for _, f := range MergeableFields {
		if f.Column == column {
			return true
		}
	}
	return false
}

// NormalizeIdentity trims and lowercases an identifier value for comparison.
func NormalizeIdentity(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
