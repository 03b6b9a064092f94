package models

import "time"

type SyncRunStatus string

const (
	RunStatusRunning   SyncRunStatus = "running"
	RunStatusCompleted SyncRunStatus = "completed"
	RunStatusFailed    SyncRunStatus = "failed"
)

// MaxStoredRowErrors caps the row error list persisted per run.
const MaxStoredRowErrors = 50

// SyncRun is one execution of the sync engine against one TabMapping.
//
// ActiveMarker doubles as the run lock: it holds the tab mapping id while
// the run is non-terminal and is NULLed on finalize. A unique index on the
// column (NULLs ignored by Postgres) makes "create run only if no active
// run exists" a single atomic insert.
type SyncRun struct {
	ID           string        `gorm:"column:id;primaryKey"`
	TabMappingID string        `gorm:"column:tab_mapping_id;index"`
	Status       SyncRunStatus `gorm:"column:status;index"`
	ActiveMarker *string       `gorm:"column:active_marker;uniqueIndex"`
	TriggeredBy  string        `gorm:"column:triggered_by"`
	DryRun       bool          `gorm:"column:dry_run"`
	RowsProcessed int          `gorm:"column:rows_processed"`
	RowsCreated   int          `gorm:"column:rows_created"`
	RowsUpdated   int          `gorm:"column:rows_updated"`
	RowsSkipped   int          `gorm:"column:rows_skipped"`
	RowsFailed    int          `gorm:"column:rows_failed"`
	Errors        JSONB        `gorm:"column:errors;type:jsonb"`
	LastError     *string      `gorm:"column:last_error"`
	StartedAt     time.Time    `gorm:"column:started_at"`
	CompletedAt   *time.Time   `gorm:"column:completed_at"`
	DurationMs    int64        `gorm:"column:duration_ms"`
	CreatedAt     time.Time    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time    `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (SyncRun) TableName() string {
	return "sync_run"
}

// Terminal reports whether the run has reached a final status.
func (r *SyncRun) Terminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}
