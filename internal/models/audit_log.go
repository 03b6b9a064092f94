package models

import "time"

// AuditLog records sync runs and mapping-rule changes for review.
// Writes are fire-and-continue: an audit failure never fails the
// operation being audited.
type AuditLog struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Action     string    `gorm:"column:action;index"`
	ActorID    string    `gorm:"column:actor_id"`
	EntityType string    `gorm:"column:entity_type"`
	EntityID   string    `gorm:"column:entity_id"`
	Details    JSONB     `gorm:"column:details;type:jsonb"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditLog) TableName() string {
	return "audit_log"
}
