package models

import "time"

type DataSourceType string

const (
	SourceTypeGoogleSheet DataSourceType = "google_sheet"
	SourceTypeWorkbook    DataSourceType = "workbook"
)

type DataSourceStatus string

const (
	SourceStatusActive   DataSourceStatus = "active"
	SourceStatusDisabled DataSourceStatus = "disabled"
)

// DataSource is one connection to an external system (e.g. one spreadsheet).
// Sources are never hard-deleted; admins disable them via Status.
type DataSource struct {
	ID        string           `gorm:"column:id;primaryKey"`
	Name      string           `gorm:"column:name"`
	Type      DataSourceType   `gorm:"column:type;index"`
	Status    DataSourceStatus `gorm:"column:status"`
	Config    JSONB            `gorm:"column:config;type:jsonb"`
	// Credential holds the encrypted connector credential (secrets.Cipher output).
	Credential *string   `gorm:"column:credential"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (DataSource) TableName() string {
	return "data_source"
}
