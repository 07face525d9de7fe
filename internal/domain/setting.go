package domain

import "time"

// AppSetting is an operator-editable key/value override of a configuration default.
type AppSetting struct {
	Key       string    `gorm:"type:text;primaryKey" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for AppSetting.
func (AppSetting) TableName() string {
	return "app_settings"
}
