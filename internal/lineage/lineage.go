// Package lineage answers "which source last wrote this field" over the
// append-only field_lineage table.
package lineage

import (
	"context"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	InsertBatch(ctx context.Context, entries []models.FieldLineage) error
	ForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error)
}

// Tracker records and queries field lineage.
type Tracker struct {
	store Store
}

func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// Record appends a batch of lineage entries.
func (t *Tracker) Record(ctx context.Context, entries []models.FieldLineage) error {
	return t.store.InsertBatch(ctx, entries)
}

// History returns every lineage entry for an entity, most recent first.
func (t *Tracker) History(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error) {
	return t.store.ForEntity(ctx, entityType, entityID)
}

// Latest returns the most recent lineage entry per field for an entity.
// The store already orders entries newest first with id as tiebreak, so
// the first entry seen per field wins.
func (t *Tracker) Latest(ctx context.Context, entityType models.EntityType, entityID string) (map[string]models.FieldLineage, error) {
	entries, err := t.store.ForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}

	latest := make(map[string]models.FieldLineage, len(entries))
	for _, e := range entries {
		if _, seen := latest[e.FieldName]; seen {
			continue
		}
		latest[e.FieldName] = e
	}
	return latest, nil
}
