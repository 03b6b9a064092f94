package models

import (
	"time"

	"gorm.io/gorm"
)

type EntityType string

const (
	EntityPartners EntityType = "partners"
	EntityStaff    EntityType = "staff"
	EntityAsins    EntityType = "asins"
)

type TabStatus string

const (
	TabStatusActive    TabStatus = "active"
	TabStatusHidden    TabStatus = "hidden"
	TabStatusReference TabStatus = "reference"
	TabStatusFlagged   TabStatus = "flagged"
)

// TabMapping binds one sheet/tab within a DataSource to one primary entity.
type TabMapping struct {
	ID             string     `gorm:"column:id;primaryKey"`
	DataSourceID   string     `gorm:"column:data_source_id;index"`
	TabName        string     `gorm:"column:tab_name"`
	HeaderRowIndex int        `gorm:"column:header_row_index"`
	PrimaryEntity  EntityType `gorm:"column:primary_entity"`
	Status         TabStatus  `gorm:"column:status"`
	// IsActive is derived: true iff Status == active. Kept in sync by BeforeSave.
	IsActive  bool      `gorm:"column:is_active;index"`
	Notes     *string   `gorm:"column:notes"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (TabMapping) TableName() string {
	return "tab_mapping"
}

// BeforeSave keeps the derived is_active flag consistent with status.
func (t *TabMapping) BeforeSave(tx *gorm.DB) error {
	t.IsActive = t.Status == TabStatusActive
	return nil
}
