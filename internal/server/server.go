// Package server exposes the HTTP surface: manual sync triggers, the
// scheduled reconciliation endpoint, and health.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/sophiesociety/hub-sync/internal/models"
	"github.com/sophiesociety/hub-sync/internal/reconcile"
	hubsync "github.com/sophiesociety/hub-sync/internal/sync"
)

// Syncer runs one tab sync.
type Syncer interface {
	SyncTab(ctx context.Context, tabMappingID string, opts hubsync.Options) (*hubsync.Result, error)
}

// Reconciler runs one partner-type reconciliation pass.
type Reconciler interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Summary, error)
}

// RunGetter fetches a sync run by id.
type RunGetter interface {
	GetByID(ctx context.Context, runID string) (*models.SyncRun, error)
}

type Server struct {
	syncer     Syncer
	reconciler Reconciler
	runs       RunGetter
	cronToken  string
	log        *logrus.Logger
}

func New(syncer Syncer, reconciler Reconciler, runs RunGetter, cronToken string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	return &Server{syncer: syncer, reconciler: reconciler, runs: runs, cronToken: cronToken, log: log}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", s.handleHealth)
	r.POST("/sync/tab/:id", s.handleSyncTab)
	r.GET("/sync/runs/:id", s.handleGetRun)
	r.POST("/cron/partner-type-reconciliation", s.requireCronToken, s.handleReconcile)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"status": "ok"})
}

type syncTabRequest struct {
	DryRun         bool `json:"dry_run"`
	ForceOverwrite bool `json:"force_overwrite"`
	RowLimit       int  `json:"row_limit"`
}

func (s *Server) handleSyncTab(c *gin.Context) {
	var req syncTabRequest
	// An empty body means a plain full sync.
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}

	triggeredBy := c.GetHeader("X-Triggered-By")
	if triggeredBy == "" {
		triggeredBy = "api"
	}

	result, err := s.syncer.SyncTab(c.Request.Context(), c.Param("id"), hubsync.Options{
		DryRun:         req.DryRun,
		ForceOverwrite: req.ForceOverwrite,
		RowLimit:       req.RowLimit,
		TriggeredBy:    triggeredBy,
	})
	if err != nil {
		s.respondSyncError(c, err)
		return
	}

	data := gin.H{
		"sync_run_id": result.RunID,
		"status":      result.Status,
		"stats": gin.H{
			"processed": result.Stats.Processed,
			"created":   result.Stats.Created,
			"updated":   result.Stats.Updated,
			"skipped":   result.Stats.Skipped,
			"failed":    result.Stats.Failed,
		},
		"weekly_upserts": result.WeeklyUpserts,
		"duration_ms":    result.DurationMs,
		"row_errors":     result.RowErrors,
	}
	// The full change set is only interesting for dry runs; real runs
	// report counters and keep the payload small.
	if req.DryRun {
		data["changes"] = result.Changes
	}
	respond(c, http.StatusOK, data)
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, http.StatusNotFound, "SYNC_RUN_NOT_FOUND", err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, run)
}

type reconcileRequest struct {
	DryRun       bool `json:"dry_run"`
	Limit        int  `json:"limit"`
	MismatchOnly bool `json:"mismatch_only"`
	DriftOnly    bool `json:"drift_only"`
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req reconcileRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
	}

	summary, err := s.reconciler.Run(c.Request.Context(), reconcile.Options{
		DryRun:       req.DryRun,
		Limit:        req.Limit,
		MismatchOnly: req.MismatchOnly,
		DriftOnly:    req.DriftOnly,
	})
	if err != nil {
		s.log.WithError(err).Error("reconciliation failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL", "reconciliation failed", nil)
		return
	}
	respond(c, http.StatusOK, summary)
}

func (s *Server) requireCronToken(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if s.cronToken == "" || token == header || token != s.cronToken {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing bearer token", nil)
		c.Abort()
		return
	}
	c.Next()
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
		"meta":    gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{"code": code, "message": message}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   body,
		"meta":    gin.H{"timestamp": time.Now().UTC().Format(time.RFC3339)},
	})
}
