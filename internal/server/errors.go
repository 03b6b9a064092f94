package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sophiesociety/hub-sync/internal/pattern"
	"github.com/sophiesociety/hub-sync/internal/repository"
)

// respondSyncError translates domain errors from the sync engine into
// HTTP status and error codes. Anything unrecognized is a 500 with a
// generic message; the detail stays in the logs and the run record.
func (s *Server) respondSyncError(c *gin.Context, err error) {
	var dup *pattern.ErrDuplicatePriority

	switch {
	case errors.Is(err, repository.ErrSyncInProgress):
		respondError(c, http.StatusConflict, "SYNC_IN_PROGRESS", err.Error(), nil)
	case errors.Is(err, repository.ErrTabMappingNotFound):
		respondError(c, http.StatusNotFound, "TAB_MAPPING_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, repository.ErrDataSourceNotFound):
		respondError(c, http.StatusNotFound, "DATA_SOURCE_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, repository.ErrNoKeyColumn):
		respondError(c, http.StatusUnprocessableEntity, "NO_KEY_COLUMN", err.Error(), nil)
	case errors.Is(err, repository.ErrMultipleKeyColumns):
		respondError(c, http.StatusUnprocessableEntity, "MULTIPLE_KEY_COLUMNS", err.Error(), nil)
	case errors.As(err, &dup):
		respondError(c, http.StatusUnprocessableEntity, "DUPLICATE_PATTERN_PRIORITY", err.Error(), gin.H{
			"priority": dup.Priority,
			"patterns": dup.Names,
		})
	default:
		s.log.WithError(err).Error("sync failed")
		respondError(c, http.StatusInternalServerError, "INTERNAL", "sync failed", nil)
	}
}
