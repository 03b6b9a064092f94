package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sophiesociety/hub-sync/internal/models"
)

var ErrUnknownTargetTable = errors.New("unknown weekly target table")

// weeklyTargetTables is the allowlist of history tables a ColumnPattern
// may route into. Pattern config is admin-supplied, so the table name is
// validated, never interpolated blindly.
var weeklyTargetTables = map[string]bool{
	"weekly_status": true,
}

type WeeklyStatusRepository struct {
	db *gorm.DB
}

func NewWeeklyStatusRepository(db *gorm.DB) *WeeklyStatusRepository {
	return &WeeklyStatusRepository{db: db}
}

// Upsert writes one week-keyed status entry into the pattern's target
// history table, keyed on (entity_type, entity_id, week_start): one entry
// per week per entity, with re-syncs updating the value in place.
func (r *WeeklyStatusRepository) Upsert(ctx context.Context, targetTable string, entry models.WeeklyStatus) error {
	if !weeklyTargetTables[targetTable] {
		return fmt.Errorf("%w: %q", ErrUnknownTargetTable, targetTable)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Table(targetTable).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "entity_type"},
			{Name: "entity_id"},
			{Name: "week_start"},
		},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":       entry.Value,
			"sync_run_id": entry.SyncRunID,
			"updated_at":  time.Now(),
		}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to upsert weekly status: %w", err)
	}
	return nil
}

// ForEntity returns an entity's weekly history, newest week first.
func (r *WeeklyStatusRepository) ForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.WeeklyStatus, error) {
	var entries []models.WeeklyStatus
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("week_start DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load weekly status: %w", err)
	}
	return entries, nil
}
