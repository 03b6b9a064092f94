// Package schedule runs the periodic background maintenance loop:
// partner-type reconciliation and stale sync-run cleanup.
package schedule

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/config"
	"github.com/sophiesociety/hub-sync/internal/reconcile"
)

// RunReaper fails sync runs stuck in running state past the threshold.
type RunReaper interface {
	ResetStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

type Scheduler struct {
	cfg        *config.Config
	reconciler *reconcile.Reconciler
	runs       RunReaper
	log        *logrus.Logger
}

func New(cfg *config.Config, reconciler *reconcile.Reconciler, runs RunReaper, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logrus.New()
	}
	return &Scheduler{cfg: cfg, reconciler: reconciler, runs: runs, log: log}
}

// Start begins the maintenance loop and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.log.Info("starting maintenance scheduler")

	// Clean up any runs left behind by a previous crash before the first tick.
	s.sweep(ctx)

	ticker := time.NewTicker(time.Duration(s.cfg.ReconcileInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("maintenance scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	threshold := time.Duration(s.cfg.StaleRunThreshold) * time.Second
	reset, err := s.runs.ResetStale(ctx, threshold)
	if err != nil {
		s.log.WithError(err).Error("failed to reset stale sync runs")
	} else if reset > 0 {
		s.log.WithField("count", reset).Warn("reset stale sync runs")
	}

	if _, err := s.reconciler.Run(ctx, reconcile.Options{}); err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.WithError(err).Error("scheduled reconciliation failed")
	}
}
