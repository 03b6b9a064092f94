package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sophiesociety/hub-sync/internal/models"
)

type SettingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetSetting implements settings.SettingStore.
func (r *SettingRepository) GetSetting(ctx context.Context, key string) (string, bool, error) {
	var setting models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read setting %q: %w", key, err)
	}
	return setting.Value, true, nil
}
