package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sophiesociety/hub-sync/internal/models"
)

// identifierRe guards table/column names interpolated into SQL. Target
// fields come from admin mapping config, not end users, but the check
// keeps a typo from becoming an injection.
var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var ErrInvalidIdentifier = errors.New("invalid identifier")

// EntityRepository reads and writes partner/staff/asin rows generically by
// table name, since the target fields are mapping-driven.
type EntityRepository struct {
	db *gorm.DB
}

func NewEntityRepository(db *gorm.DB) *EntityRepository {
	return &EntityRepository{db: db}
}

// FindByKey looks up an entity row by key field. Keys are compared
// case-insensitively after trimming on both sides, matching how they were
// originally written by syncs.
func (r *EntityRepository) FindByKey(ctx context.Context, entity models.EntityType, keyField, keyValue string) (map[string]interface{}, bool, error) {
	table := models.EntityTable(entity)
	if !identifierRe.MatchString(table) || !identifierRe.MatchString(keyField) {
		return nil, false, ErrInvalidIdentifier
	}

	row := map[string]interface{}{}
	err := r.db.WithContext(ctx).Table(table).
		Where(fmt.Sprintf("LOWER(TRIM(%s)) = LOWER(TRIM(?))", keyField), keyValue).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to find %s by %s: %w", table, keyField, err)
	}
	return row, true, nil
}

// Create inserts a new entity row and returns its id.
func (r *EntityRepository) Create(ctx context.Context, entity models.EntityType, fields map[string]interface{}) (string, error) {
	table := models.EntityTable(entity)
	if !identifierRe.MatchString(table) {
		return "", ErrInvalidIdentifier
	}
	for name := range fields {
		if !identifierRe.MatchString(name) {
			return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
	}

	id := uuid.NewString()
	row := make(map[string]interface{}, len(fields)+3)
	for k, v := range fields {
		row[k] = v
	}
	now := time.Now()
	row["id"] = id
	row["created_at"] = now
	row["updated_at"] = now

	if err := r.db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		return "", fmt.Errorf("failed to create %s row: %w", table, err)
	}
	return id, nil
}

// UpdateFields writes the given fields to an entity row. Two concurrent
// syncs targeting the same entity from different tabs interleave as
// last-writer-wins per field; each run is internally sequential so no
// partial row state is observable within a run.
func (r *EntityRepository) UpdateFields(ctx context.Context, entity models.EntityType, id string, fields map[string]interface{}) error {
	table := models.EntityTable(entity)
	if !identifierRe.MatchString(table) {
		return ErrInvalidIdentifier
	}
	if len(fields) == 0 {
		return nil
	}

	updates := make(map[string]interface{}, len(fields)+1)
	for name, v := range fields {
		if !identifierRe.MatchString(name) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
		}
		updates[name] = v
	}
	updates["updated_at"] = time.Now()

	result := r.db.WithContext(ctx).Table(table).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update %s row: %w", table, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%s row %s not found", table, id)
	}
	return nil
}

// ListPartners returns partners for the reconciliation pass, oldest
// updated first so drift is healed in age order.
func (r *EntityRepository) ListPartners(ctx context.Context, limit int) ([]models.Partner, error) {
	var partners []models.Partner
	q := r.db.WithContext(ctx).Order("updated_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&partners).Error; err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	return partners, nil
}

// CountStaffForPartner counts active staff assigned to a partner's pod, a
// staffing signal for partner-type derivation.
func (r *EntityRepository) CountStaffForPartner(ctx context.Context, partnerID string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Staff{}).
		Where("source_data ->> 'partner_id' = ? AND status = ?", partnerID, "active").
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count staff for partner: %w", err)
	}
	return int(count), nil
}

// UpdatePartnerType persists a recomputed partner taxonomy value.
func (r *EntityRepository) UpdatePartnerType(ctx context.Context, partnerID, partnerType string) error {
	result := r.db.WithContext(ctx).Model(&models.Partner{}).
		Where("id = ?", partnerID).
		Updates(map[string]interface{}{
			"partner_type": partnerType,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update partner type: %w", result.Error)
	}
	return nil
}
