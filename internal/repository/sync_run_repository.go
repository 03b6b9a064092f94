package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// ErrSyncInProgress marks a refused run: another run is already active
// for the tab. Callers surface it as a 409; it is never retried
// automatically.
var ErrSyncInProgress = errors.New("a sync is already in progress for this tab")

type SyncRunRepository struct {
	db *gorm.DB
}

func NewSyncRunRepository(db *gorm.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// CreateActive atomically creates a running SyncRun for the tab. The
// unique index on active_marker turns "only one non-terminal run per tab"
// into a single insert: a duplicate-key failure means a run is active.
func (r *SyncRunRepository) CreateActive(ctx context.Context, tabMappingID, triggeredBy string, dryRun bool) (*models.SyncRun, error) {
	marker := tabMappingID
	run := models.SyncRun{
		ID:           uuid.NewString(),
		TabMappingID: tabMappingID,
		Status:       models.RunStatusRunning,
		ActiveMarker: &marker,
		TriggeredBy:  triggeredBy,
		DryRun:       dryRun,
		StartedAt:    time.Now(),
	}

	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSyncInProgress
		}
		return nil, fmt.Errorf("failed to create sync run: %w", err)
	}
	return &run, nil
}

// RunStats carries the counters accumulated during a run.
type RunStats struct {
	Processed int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
}

// Finalize marks a run terminal and releases the lock (active_marker goes
// NULL; the lock is "no active run row exists").
func (r *SyncRunRepository) Finalize(ctx context.Context, runID string, status models.SyncRunStatus, stats RunStats, runErrors []map[string]interface{}, lastError *string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":         status,
		"active_marker":  nil,
		"rows_processed": stats.Processed,
		"rows_created":   stats.Created,
		"rows_updated":   stats.Updated,
		"rows_skipped":   stats.Skipped,
		"rows_failed":    stats.Failed,
		"last_error":     lastError,
		"completed_at":   &now,
		"updated_at":     now,
	}
	if len(runErrors) > 0 {
		updates["errors"] = models.JSONB{"rows": runErrors}
	}

	result := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ?", runID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to finalize sync run: %w", result.Error)
	}

	// duration_ms derives from started_at, written in a second statement
	// so Finalize needs no prior read.
	if err := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("id = ?", runID).
		Update("duration_ms", gorm.Expr("(EXTRACT(EPOCH FROM completed_at - started_at) * 1000)::bigint")).Error; err != nil {
		return fmt.Errorf("failed to record run duration: %w", err)
	}
	return nil
}

// GetByID retrieves a sync run.
func (r *SyncRunRepository) GetByID(ctx context.Context, runID string) (*models.SyncRun, error) {
	var run models.SyncRun
	if err := r.db.WithContext(ctx).Where("id = ?", runID).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sync run not found")
		}
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return &run, nil
}

// ResetStale fails runs left running longer than olderThan (crashed
// workers never finalize their row). Returns the number of runs reset.
func (r *SyncRunRepository) ResetStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	reason := "reset: run exceeded stale threshold"

	result := r.db.WithContext(ctx).Model(&models.SyncRun{}).
		Where("status = ? AND started_at < ?", models.RunStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":        models.RunStatusFailed,
			"active_marker": nil,
			"last_error":    reason,
			"completed_at":  time.Now(),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reset stale runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
