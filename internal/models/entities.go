package models

import "time"

// Partner is an Amazon brand the agency manages.
type Partner struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Name        string    `gorm:"column:name;index"`
	Email       *string   `gorm:"column:email"`
	Marketplace *string   `gorm:"column:marketplace"`
	Status      *string   `gorm:"column:status"`
	PartnerType *string   `gorm:"column:partner_type;index"`
	BrandName   *string   `gorm:"column:brand_name"`
	Notes       *string   `gorm:"column:notes"`
	SourceData  JSONB     `gorm:"column:source_data;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Partner) TableName() string {
	return "partners"
}

// Staff is one agency staff member or directory account.
type Staff struct {
	ID                string    `gorm:"column:id;primaryKey"`
	FullName          *string   `gorm:"column:full_name"`
	Email             string    `gorm:"column:email;index"`
	Role              *string   `gorm:"column:role"`
	Pod               *string   `gorm:"column:pod"`
	Status            *string   `gorm:"column:status"`
	GoogleAccountType *string   `gorm:"column:google_account_type"`
	SourceData        JSONB     `gorm:"column:source_data;type:jsonb"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Staff) TableName() string {
	return "staff"
}

// Asin is one tracked Amazon listing.
type Asin struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Asin        string    `gorm:"column:asin;index"`
	Title       *string   `gorm:"column:title"`
	Marketplace *string   `gorm:"column:marketplace"`
	PartnerID   *string   `gorm:"column:partner_id;index"`
	Status      *string   `gorm:"column:status"`
	SourceData  JSONB     `gorm:"column:source_data;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Asin) TableName() string {
	return "asins"
}

// EntityTable maps an entity type to its table name.
func EntityTable(entity EntityType) string {
	return string(entity)
}
