package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sophiesociety/hub-sync/internal/cache"
	"github.com/sophiesociety/hub-sync/internal/models"
)

var (
	ErrTabMappingNotFound = errors.New("tab mapping not found")
	ErrDataSourceNotFound = errors.New("data source not found")
	// ErrNoKeyColumn and ErrMultipleKeyColumns are fatal preconditions:
	// sync refuses to run for a tab without exactly one key column.
	ErrNoKeyColumn        = errors.New("tab mapping has no key column")
	ErrMultipleKeyColumns = errors.New("tab mapping has more than one key column")
)

// SyncConfig is the full mapping configuration for one tab: the tab, its
// data source, the active column mappings, the active column patterns,
// and the single key column.
type SyncConfig struct {
	Tab      models.TabMapping
	Source   models.DataSource
	Columns  []models.ColumnMapping
	Patterns []models.ColumnPattern
	Key      models.ColumnMapping
}

type MappingRepository struct {
	db    *gorm.DB
	cache *cache.TTL
}

// NewMappingRepository creates the mapping store. The cache may be nil to
// disable config caching.
func NewMappingRepository(db *gorm.DB, configCache *cache.TTL) *MappingRepository {
	return &MappingRepository{db: db, cache: configCache}
}

// SelectKeyColumn enforces the exactly-one-key precondition over a tab's
// column mappings.
func SelectKeyColumn(columns []models.ColumnMapping) (models.ColumnMapping, error) {
	var key *models.ColumnMapping
	for i := range columns {
		if !columns[i].IsKey {
			continue
		}
		if key != nil {
			return models.ColumnMapping{}, ErrMultipleKeyColumns
		}
		key = &columns[i]
	}
	if key == nil {
		return models.ColumnMapping{}, ErrNoKeyColumn
	}
	return *key, nil
}

// LoadConfig loads the full mapping configuration for one tab. Results
// are cached per tab id; InvalidateConfig must be called on remap.
func (r *MappingRepository) LoadConfig(ctx context.Context, tabMappingID string) (*SyncConfig, error) {
	if r.cache != nil {
		if v, ok := r.cache.Get(tabMappingID); ok {
			cfg := v.(SyncConfig)
			return &cfg, nil
		}
	}

	var tab models.TabMapping
	if err := r.db.WithContext(ctx).Where("id = ?", tabMappingID).Take(&tab).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTabMappingNotFound
		}
		return nil, fmt.Errorf("failed to load tab mapping: %w", err)
	}

	var source models.DataSource
	if err := r.db.WithContext(ctx).Where("id = ?", tab.DataSourceID).Take(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDataSourceNotFound
		}
		return nil, fmt.Errorf("failed to load data source: %w", err)
	}

	columns, err := r.columnsForTabs(ctx, []string{tabMappingID})
	if err != nil {
		return nil, err
	}

	patterns, err := r.ActivePatterns(ctx)
	if err != nil {
		return nil, err
	}

	key, err := SelectKeyColumn(columns[tabMappingID])
	if err != nil {
		return nil, err
	}

	cfg := SyncConfig{
		Tab:      tab,
		Source:   source,
		Columns:  columns[tabMappingID],
		Patterns: patterns,
		Key:      key,
	}
	if r.cache != nil {
		r.cache.Set(tabMappingID, cfg)
	}
	return &cfg, nil
}

// LoadConfigsForSource loads configurations for every active tab of a
// data source in a fixed number of queries, not one per tab.
func (r *MappingRepository) LoadConfigsForSource(ctx context.Context, dataSourceID string) ([]SyncConfig, error) {
	var source models.DataSource
	if err := r.db.WithContext(ctx).Where("id = ?", dataSourceID).Take(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDataSourceNotFound
		}
		return nil, fmt.Errorf("failed to load data source: %w", err)
	}

	var tabs []models.TabMapping
	if err := r.db.WithContext(ctx).
		Where("data_source_id = ? AND is_active = ?", dataSourceID, true).
		Order("tab_name ASC").
		Find(&tabs).Error; err != nil {
		return nil, fmt.Errorf("failed to load tab mappings: %w", err)
	}

	tabIDs := make([]string, 0, len(tabs))
	for _, t := range tabs {
		tabIDs = append(tabIDs, t.ID)
	}

	columns, err := r.columnsForTabs(ctx, tabIDs)
	if err != nil {
		return nil, err
	}

	patterns, err := r.ActivePatterns(ctx)
	if err != nil {
		return nil, err
	}

	configs := make([]SyncConfig, 0, len(tabs))
	for _, tab := range tabs {
		key, err := SelectKeyColumn(columns[tab.ID])
		if err != nil {
			return nil, fmt.Errorf("tab %q: %w", tab.TabName, err)
		}
		configs = append(configs, SyncConfig{
			Tab:      tab,
			Source:   source,
			Columns:  columns[tab.ID],
			Patterns: patterns,
			Key:      key,
		})
	}
	return configs, nil
}

// InvalidateConfig drops the cached configuration for a tab after remap.
func (r *MappingRepository) InvalidateConfig(tabMappingID string) {
	if r.cache != nil {
		r.cache.Invalidate(tabMappingID)
	}
}

// ActivePatterns returns all active column patterns.
func (r *MappingRepository) ActivePatterns(ctx context.Context) ([]models.ColumnPattern, error) {
	var patterns []models.ColumnPattern
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC").
		Find(&patterns).Error; err != nil {
		return nil, fmt.Errorf("failed to load column patterns: %w", err)
	}
	return patterns, nil
}

func (r *MappingRepository) columnsForTabs(ctx context.Context, tabIDs []string) (map[string][]models.ColumnMapping, error) {
	grouped := make(map[string][]models.ColumnMapping, len(tabIDs))
	if len(tabIDs) == 0 {
		return grouped, nil
	}

	var columns []models.ColumnMapping
	if err := r.db.WithContext(ctx).
		Where("tab_mapping_id IN ?", tabIDs).
		Order("source_index ASC").
		Find(&columns).Error; err != nil {
		return nil, fmt.Errorf("failed to load column mappings: %w", err)
	}

	for _, c := range columns {
		grouped[c.TabMappingID] = append(grouped[c.TabMappingID], c)
	}
	return grouped, nil
}

// TouchTabStatus updates a tab's status (is_active follows via the model
// hook) and invalidates the cached config.
func (r *MappingRepository) TouchTabStatus(ctx context.Context, tabMappingID string, status models.TabStatus) error {
	var tab models.TabMapping
	if err := r.db.WithContext(ctx).Where("id = ?", tabMappingID).Take(&tab).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTabMappingNotFound
		}
		return fmt.Errorf("failed to load tab mapping: %w", err)
	}

	tab.Status = status
	tab.UpdatedAt = time.Now()
	if err := r.db.WithContext(ctx).Save(&tab).Error; err != nil {
		return fmt.Errorf("failed to update tab status: %w", err)
	}

	r.InvalidateConfig(tabMappingID)
	return nil
}
