package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/sophiesociety/hub-sync/internal/models"
)

type mockStore struct {
	InsertBatchFunc func(ctx context.Context, entries []models.FieldLineage) error
	ForEntityFunc   func(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error)
}

func (m *mockStore) InsertBatch(ctx context.Context, entries []models.FieldLineage) error {
	return m.InsertBatchFunc(ctx, entries)
}

func (m *mockStore) ForEntity(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error) {
	return m.ForEntityFunc(ctx, entityType, entityID)
}

func TestLatestDeduplicatesPerField(t *testing.T) {
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	// Newest first, as the store orders them.
	entries := []models.FieldLineage{
		{ID: 4, FieldName: "status", SourceRef: "Master Sheet/Partners", ChangedAt: base.Add(2 * time.Hour)},
		{ID: 3, FieldName: "notes", SourceRef: "Ops Workbook/Notes", ChangedAt: base.Add(time.Hour)},
		{ID: 2, FieldName: "status", SourceRef: "Ops Workbook/Partners", ChangedAt: base},
		{ID: 1, FieldName: "notes", SourceRef: "Master Sheet/Partners", ChangedAt: base},
	}
	tracker := NewTracker(&mockStore{
		ForEntityFunc: func(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error) {
			return entries, nil
		},
	})

	latest, err := tracker.Latest(context.Background(), models.EntityPartners, "p-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(latest))
	}
	if latest["status"].ID != 4 {
		t.Errorf("expected newest status entry (id 4), got %d", latest["status"].ID)
	}
	if latest["notes"].SourceRef != "Ops Workbook/Notes" {
		t.Errorf("expected newest notes entry, got %s", latest["notes"].SourceRef)
	}
}

func TestLatestSameTimestampUsesIDTiebreak(t *testing.T) {
	ts := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	entries := []models.FieldLineage{
		{ID: 2, FieldName: "status", SourceRef: "second-writer", ChangedAt: ts},
		{ID: 1, FieldName: "status", SourceRef: "first-writer", ChangedAt: ts},
	}
	tracker := NewTracker(&mockStore{
		ForEntityFunc: func(ctx context.Context, entityType models.EntityType, entityID string) ([]models.FieldLineage, error) {
			return entries, nil
		},
	})

	latest, err := tracker.Latest(context.Background(), models.EntityPartners, "p-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if latest["status"].SourceRef != "second-writer" {
		t.Errorf("insertion order must break the tie, got %s", latest["status"].SourceRef)
	}
}
