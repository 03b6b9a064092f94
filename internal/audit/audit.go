// Package audit writes review-trail entries for sync runs and mapping
// rule changes. Every write is fire-and-continue: audit failures are
// logged, never propagated.
package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/repository"
)

// Store persists audit entries.
type Store interface {
	Insert(ctx context.Context, entry models.AuditLog) error
}

type Logger struct {
	store Store
	log   *logrus.Logger
}

func NewLogger(store Store, log *logrus.Logger) *Logger {
	if log == nil {
		log = logrus.New()
	}
	return &Logger{store: store, log: log}
}

// SyncRun records a completed sync run.
func (l *Logger) SyncRun(ctx context.Context, run *models.SyncRun, stats repository.RunStats) {
	l.write(ctx, models.AuditLog{
		Action:     "sync_run",
		ActorID:    run.TriggeredBy,
		EntityType: "tab_mapping",
		EntityID:   run.TabMappingID,
		Details: models.JSONB{
			"sync_run_id": run.ID,
			"dry_run":     run.DryRun,
			"processed":   stats.Processed,
			"created":     stats.Created,
			"updated":     stats.Updated,
			"skipped":     stats.Skipped,
			"failed":      stats.Failed,
		},
	})
}

// RuleChange records an admin change to mapping configuration or a
// system-driven rule application.
func (l *Logger) RuleChange(ctx context.Context, action, subject string, detail map[string]interface{}) {
	l.write(ctx, models.AuditLog{
		Action:     action,
		ActorID:    "system",
		EntityType: subject,
		Details:    models.JSONB(detail),
	})
}

func (l *Logger) write(ctx context.Context, entry models.AuditLog) {
	if err := l.store.Insert(ctx, entry); err != nil {
		l.log.WithError(err).WithField("action", entry.Action).Warn("failed to write audit entry")
	}
}
