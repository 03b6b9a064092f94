package models

import "time"

// ColumnPattern matches a family of columns by structural pattern (primarily
// weekly date-stamped status columns) rather than a fixed column index.
// Higher Priority wins when several patterns match the same header; a
// priority tie among active patterns is a configuration error.
type ColumnPattern struct {
	ID          string         `gorm:"column:id;primaryKey"`
	Name        string         `gorm:"column:name"`
	Category    ColumnCategory `gorm:"column:category"`
	MatchRegex  string         `gorm:"column:match_regex"`
	TargetTable string         `gorm:"column:target_table"`
	Priority    int            `gorm:"column:priority"`
	IsActive    bool           `gorm:"column:is_active;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ColumnPattern) TableName() string {
	return "column_pattern"
}
