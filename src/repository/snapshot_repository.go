package repository

import (
	"context"
	"errors"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"spotpilot/src/database"
	"spotpilot/src/model"
)

// SnapshotRepository handles the bounded portfolio snapshot history.
type SnapshotRepository struct {
	db  *gorm.DB
	cap int
}

// NewSnapshotRepository creates a new repository instance using the main database.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{db: database.MainDB, cap: GetConfig().SnapshotCap}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SnapshotRepository) WithDB(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db, cap: r.cap}
}

// WithCap overrides the ring size. Useful for tests.
func (r *SnapshotRepository) WithCap(cap int) *SnapshotRepository {
	return &SnapshotRepository{db: r.db, cap: cap}
}

// Append inserts a snapshot and prunes rows beyond the configured cap so
// the history behaves as a bounded ring.
func (r *SnapshotRepository) Append(ctx context.Context, snap *model.PortfolioSnapshot) error {
	logger.WithFields(map[string]interface{}{
		"repo":        "SnapshotRepository",
		"op":          "Append",
		"total_value": snap.TotalValue,
	}).Debug("Appending portfolio snapshot")

	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "SnapshotRepository",
			"op":   "Append",
		}).WithError(err).Error("Failed to append snapshot")
		return err
	}

	if r.cap > 0 {
		keep := r.db.Model(&model.PortfolioSnapshot{}).
			Select("id").
			Order("id DESC").
			Limit(r.cap)

		if err := r.db.WithContext(ctx).
			Where("id NOT IN (?)", keep).
			Delete(&model.PortfolioSnapshot{}).Error; err != nil {
			logger.WithFields(map[string]interface{}{
				"repo": "SnapshotRepository",
				"op":   "Append",
				"cap":  r.cap,
			}).WithError(err).Error("Failed to prune snapshot ring")
			return err
		}
	}

	return nil
}

// Latest returns the most recent snapshot, or (nil, nil) when the table is empty.
func (r *SnapshotRepository) Latest(ctx context.Context) (*model.PortfolioSnapshot, error) {
	var snap model.PortfolioSnapshot

	err := r.db.WithContext(ctx).Last(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "SnapshotRepository",
			"op":   "Latest",
		}).WithError(err).Error("Failed to fetch latest snapshot")
		return nil, err
	}

	return &snap, nil
}

// FindSince returns snapshots taken at or after the given time, oldest first.
func (r *SnapshotRepository) FindSince(ctx context.Context, since time.Time) ([]model.PortfolioSnapshot, error) {
	var snaps []model.PortfolioSnapshot

	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("id ASC").
		Find(&snaps).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "SnapshotRepository",
			"op":    "FindSince",
			"since": since,
		}).WithError(err).Error("Failed to fetch snapshots since timestamp")
		return nil, err
	}

	return snaps, nil
}
