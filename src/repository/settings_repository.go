package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spotpilot/src/database"
	"spotpilot/src/model"
)

// SettingsRepository handles the shared key/value settings table.
type SettingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new repository instance using the main database.
func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SettingsRepository) WithDB(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the value stored under key, or ("", nil) when the key is absent.
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var setting model.Setting

	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "SettingsRepository",
			"op":   "Get",
			"key":  key,
		}).WithError(err).Error("Failed to read setting")
		return "", err
	}

	return setting.Value, nil
}

// Set writes the value under key, inserting or updating as needed.
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	setting := model.Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&setting).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SettingsRepository",
			"op":   "Set",
			"key":  key,
		}).WithError(err).Error("Failed to write setting")
		return err
	}

	return nil
}

// Delete removes the value stored under key. Missing keys are not an error.
func (r *SettingsRepository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).
		Where("key = ?", key).
		Delete(&model.Setting{}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SettingsRepository",
			"op":   "Delete",
			"key":  key,
		}).WithError(err).Error("Failed to delete setting")
		return err
	}

	return nil
}
