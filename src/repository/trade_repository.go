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

// TradeRepository handles read/write operations for trade records.
// Trades are append-only: rows are created and status-transitioned,
// never deleted.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade record.
func (r *TradeRepository) Create(ctx context.Context, trade *model.Trade) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "Create",
		"symbol": trade.Symbol,
		"side":   trade.Side,
		"amount": trade.Amount,
	}).Debug("Creating trade")

	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade")
		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "Create",
		"trade_id": trade.ID,
		"status":   trade.Status,
	}).Info("Trade created")

	return nil
}

// FindOpen returns all open trades, oldest first.
func (r *TradeRepository) FindOpen(ctx context.Context) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("status = ?", model.TradeStatusOpen).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "FindOpen",
		}).WithError(err).Error("Failed to fetch open trades")
		return nil, err
	}

	return trades, nil
}

// FindOpenBySymbol returns the open trades for one symbol, oldest first.
func (r *TradeRepository) FindOpenBySymbol(ctx context.Context, symbol string) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("status = ? AND symbol = ?", model.TradeStatusOpen, symbol).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "FindOpenBySymbol",
			"symbol": symbol,
		}).WithError(err).Error("Failed to fetch open trades by symbol")
		return nil, err
	}

	return trades, nil
}

// FindSince returns trades created at or after the given time, oldest first.
func (r *TradeRepository) FindSince(ctx context.Context, since time.Time) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("created_at >= ?", since).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "FindSince",
			"since": since,
		}).WithError(err).Error("Failed to fetch trades since timestamp")
		return nil, err
	}

	return trades, nil
}

// FindRecent returns the latest trades ordered from newest to oldest.
func (r *TradeRepository) FindRecent(ctx context.Context, limit int) ([]model.Trade, error) {
	if limit <= 0 {
		limit = 20
	}

	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "TradeRepository",
			"op":    "FindRecent",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch recent trades")
		return nil, err
	}

	return trades, nil
}

// CloseTrade flips one trade to closed and records the exit reason.
func (r *TradeRepository) CloseTrade(ctx context.Context, id uint, reason string) error {
	logger.WithFields(map[string]interface{}{
		"repo":     "TradeRepository",
		"op":       "CloseTrade",
		"trade_id": id,
		"reason":   reason,
	}).Debug("Closing trade")

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": model.TradeStatusClosed,
			"reason": reason,
		}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "CloseTrade",
			"trade_id": id,
		}).WithError(err).Error("Failed to close trade")
		return err
	}

	return nil
}

// CloseOpenForSymbol flips every open trade for the symbol to closed.
// Returns the number of rows transitioned.
func (r *TradeRepository) CloseOpenForSymbol(ctx context.Context, symbol, reason string) (int64, error) {
	logger.WithFields(map[string]interface{}{
		"repo":   "TradeRepository",
		"op":     "CloseOpenForSymbol",
		"symbol": symbol,
		"reason": reason,
	}).Debug("Closing open trades for symbol")

	res := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("status = ? AND symbol = ?", model.TradeStatusOpen, symbol).
		Updates(map[string]interface{}{
			"status": model.TradeStatusClosed,
			"reason": reason,
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":   "TradeRepository",
			"op":     "CloseOpenForSymbol",
			"symbol": symbol,
		}).WithError(res.Error).Error("Failed to close open trades for symbol")
		return 0, res.Error
	}

	return res.RowsAffected, nil
}

// UpdateHighWaterMark persists a raised trailing high-water mark.
func (r *TradeRepository) UpdateHighWaterMark(ctx context.Context, id uint, mark float64) error {
	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("id = ?", id).
		Update("high_water_mark", mark).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "UpdateHighWaterMark",
			"trade_id": id,
			"mark":     mark,
		}).WithError(err).Error("Failed to update high-water mark")
		return err
	}

	return nil
}

// FindByID fetches a single trade by primary key.
// Returns (nil, nil) if the trade is not found.
func (r *TradeRepository) FindByID(ctx context.Context, id uint) (*model.Trade, error) {
	var trade model.Trade

	err := r.db.WithContext(ctx).First(&trade, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "FindByID",
			"trade_id": id,
		}).WithError(err).Error("Failed to fetch trade by ID")
		return nil, err
	}

	return &trade, nil
}
