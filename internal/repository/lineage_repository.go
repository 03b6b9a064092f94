package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/sophiesociety/hub-sync/internal/models"
)

type LineageRepository struct {
	db *gorm.DB
}

func NewLineageRepository(db *gorm.DB) *LineageRepository {
	return &LineageRepository{db: db}
}

// InsertBatch appends lineage entries. Entries are never mutated after
// creation.
func (r *LineageRepository) InsertBatch(ctx context.Context, entries []models.FieldLineage) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("failed to insert lineage entries: %w", err)
	}
	return nil
}

// ForEntity returns all lineage rows for an entity, most recent first,
// ties broken by row id so ordering stays deterministic.
func (r *LineageRepository) ForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error) {
	var entries []models.FieldLineage
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("changed_at DESC, id DESC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load lineage: %w", err)
	}
	return entries, nil
}
