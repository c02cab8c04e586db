package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"spotpilot/src/database"
	"spotpilot/src/model"
)

// BotLogRepository persists engine activity entries with a bounded history.
type BotLogRepository struct {
	db  *gorm.DB
	cap int
}

// NewBotLogRepository creates a new repository instance using the main database.
func NewBotLogRepository() *BotLogRepository {
	return &BotLogRepository{db: database.MainDB, cap: GetConfig().BotLogCap}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *BotLogRepository) WithDB(db *gorm.DB) *BotLogRepository {
	return &BotLogRepository{db: db, cap: r.cap}
}

// WithCap overrides the ring size. Useful for tests.
func (r *BotLogRepository) WithCap(cap int) *BotLogRepository {
	return &BotLogRepository{db: r.db, cap: cap}
}

// Append inserts an activity entry and prunes rows beyond the configured cap.
func (r *BotLogRepository) Append(ctx context.Context, entry *model.BotLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "BotLogRepository",
			"op":    "Append",
			"scope": entry.Scope,
		}).WithError(err).Error("Failed to append bot log entry")
		return err
	}

	if r.cap > 0 {
		keep := r.db.Model(&model.BotLog{}).
			Select("id").
			Order("id DESC").
			Limit(r.cap)

		if err := r.db.WithContext(ctx).
			Where("id NOT IN (?)", keep).
			Delete(&model.BotLog{}).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo": "BotLogRepository",
				"op":   "Append",
				"cap":  r.cap,
			}).WithError(err).Error("Failed to prune bot log ring")
			return err
		}
	}

	return nil
}

// FindRecent returns the newest entries first, up to limit (default 50).
func (r *BotLogRepository) FindRecent(ctx context.Context, limit int) ([]model.BotLog, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []model.BotLog

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "BotLogRepository",
			"op":    "FindRecent",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch recent bot log entries")
		return nil, err
	}

	return entries, nil
}
