package models

import "time"

// Setting is one key/value application setting. Settings stored here take
// precedence over environment variables (see internal/settings).
type Setting struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Setting) TableName() string {
	return "setting"
}
