package models

import "time"

// FieldLineage is an append-only record of which source/column/run last
// wrote an entity field. Rows are never mutated after creation; reads
// deduplicate to the most recent entry per field.
type FieldLineage struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EntityType    EntityType `gorm:"column:entity_type;index:idx_lineage_entity,priority:1"`
	EntityID      string     `gorm:"column:entity_id;index:idx_lineage_entity,priority:2"`
	FieldName     string     `gorm:"column:field_name"`
	SourceType    string     `gorm:"column:source_type"`
	SourceRef     string     `gorm:"column:source_ref"`
	PreviousValue *string    `gorm:"column:previous_value"`
	NewValue      *string    `gorm:"column:new_value"`
	SyncRunID     string     `gorm:"column:sync_run_id;index"`
	ChangedBy     string     `gorm:"column:changed_by"`
	ChangedAt     time.Time  `gorm:"column:changed_at"`
}

// TableName specifies the table name for GORM
func (FieldLineage) TableName() string {
	return "field_lineage"
}
