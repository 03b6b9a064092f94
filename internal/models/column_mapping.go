package models

import "time"

type ColumnCategory string

const (
	CategoryPartner  ColumnCategory = "partner"
	CategoryStaff    ColumnCategory = "staff"
	CategoryAsin     ColumnCategory = "asin"
	CategoryWeekly   ColumnCategory = "weekly"
	CategoryComputed ColumnCategory = "computed"
	CategorySkip     ColumnCategory = "skip"
)

type Authority string

const (
	AuthoritySourceOfTruth Authority = "source_of_truth"
	AuthorityReference     Authority = "reference"
	AuthorityDerived       Authority = "derived"
)

type TransformKind string

const (
	TransformNone      TransformKind = "none"
	TransformTrim      TransformKind = "trim"
	TransformLowercase TransformKind = "lowercase"
	TransformUppercase TransformKind = "uppercase"
	TransformDate      TransformKind = "date"
	TransformCurrency  TransformKind = "currency"
	TransformBoolean   TransformKind = "boolean"
	TransformNumber    TransformKind = "number"
	TransformJSON      TransformKind = "json"
)

// ColumnMapping binds one spreadsheet column to one target entity field.
// Weekly and computed column families are never stored as individual
// mappings; they are matched structurally via ColumnPattern instead.
type ColumnMapping struct {
	ID           string         `gorm:"column:id;primaryKey"`
	TabMappingID string         `gorm:"column:tab_mapping_id;index"`
	SourceColumn string         `gorm:"column:source_column"`
	SourceIndex  int            `gorm:"column:source_index"`
	Category     ColumnCategory `gorm:"column:category"`
	TargetField  *string        `gorm:"column:target_field"`
	Transform    TransformKind  `gorm:"column:transform"`
	Authority    Authority      `gorm:"column:authority"`
	// IsKey marks the column used to identity-match rows against existing
	// entities. Exactly one key column is required per syncable tab.
	IsKey     bool      `gorm:"column:is_key"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ColumnMapping) TableName() string {
	return "column_mapping"
}
