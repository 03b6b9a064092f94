package models

import "time"

// WeeklyStatus is one week-keyed status history entry produced by a
// weekly-pattern column. Upserted on (entity_type, entity_id, week_start);
// one entry per week per entity, never deduplicated away.
type WeeklyStatus struct {
	ID         string     `gorm:"column:id;primaryKey"`
	EntityType EntityType `gorm:"column:entity_type;uniqueIndex:idx_weekly_status_entity_week,priority:1"`
	EntityID   string     `gorm:"column:entity_id;uniqueIndex:idx_weekly_status_entity_week,priority:2"`
	WeekStart  time.Time  `gorm:"column:week_start;type:date;uniqueIndex:idx_weekly_status_entity_week,priority:3"`
	Value      string     `gorm:"column:value"`
	SyncRunID  string     `gorm:"column:sync_run_id;index"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (WeeklyStatus) TableName() string {
	return "weekly_status"
}
