package risk

import (
	"context"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
	"spotpilot/src/strategy"
	"spotpilot/src/utils"
)

type tradeStore interface {
	FindOpen(ctx context.Context) ([]model.Trade, error)
	UpdateHighWaterMark(ctx context.Context, id uint, mark float64) error
}

type snapshotStore interface {
	FindSince(ctx context.Context, since time.Time) ([]model.PortfolioSnapshot, error)
}

type settingsStore interface {
	Set(ctx context.Context, key, value string) error
}

// positionCloser executes the market sell and the bookkeeping for one open
// trade. Implemented by the trader.
type positionCloser interface {
	ClosePosition(ctx context.Context, runID string, tr model.Trade, price float64, tag, reason string) (*model.OrderFill, error)
}

var (
	newTradeStore    = func() tradeStore { return repository.NewTradeRepository() }
	newSnapshotStore = func() snapshotStore { return repository.NewSnapshotRepository() }
	newSettingsStore = func() settingsStore { return repository.NewSettingsRepository() }
)

// ExitResult records the handling of one open trade during exit management
// or safety liquidation.
type ExitResult struct {
	TradeID  uint    `json:"trade_id"`
	Symbol   string  `json:"symbol"`
	Reason   string  `json:"reason"`
	Price    float64 `json:"price"`
	Amount   float64 `json:"amount"`
	Proceeds float64 `json:"proceeds"`
	Closed   bool    `json:"closed"`
	Err      string  `json:"error,omitempty"`
}

// Manager runs the per-trade exit engine, the daily drawdown breaker and
// the liveness heartbeat. It never opens positions.
type Manager struct {
	trades    tradeStore
	snapshots snapshotStore
	settings  settingsStore
	closer    positionCloser
	now       func() time.Time
}

func NewManager(closer positionCloser) *Manager {
	return &Manager{
		trades:    newTradeStore(),
		snapshots: newSnapshotStore(),
		settings:  newSettingsStore(),
		closer:    closer,
		now:       time.Now,
	}
}

// ManageExits evaluates every open trade against the current prices and
// closes the ones that hit their stop, trail or target. Trades without a
// price this run are left untouched. Raised high-water marks on surviving
// trades are persisted.
func (m *Manager) ManageExits(ctx context.Context, runID string, prices map[string]float64, cfg strategy.Config) []ExitResult {
	open, err := m.trades.FindOpen(ctx)
	if err != nil {
		logger.WithError(err).Error("Exit management skipped: cannot list open trades")
		return nil
	}

	var results []ExitResult
	for _, tr := range open {
		price, ok := prices[tr.Symbol]
		if !ok || price <= 0 {
			continue
		}

		d := EvaluateExit(tr, price, cfg)
		if !d.Close {
			if d.MarkRaised {
				if err := m.trades.UpdateHighWaterMark(ctx, tr.ID, d.Mark); err != nil {
					logger.WithError(err).WithField("trade_id", tr.ID).Error("Failed to persist high-water mark")
				}
			}
			continue
		}

		results = append(results, m.close(ctx, runID, tr, price, model.StrategyRiskManager, d.Reason))
	}
	return results
}

// LiquidateAll closes every open trade, tagging the sells as safety-mode
// exits. Trades without a current price fall back to their entry price as
// the order hint.
func (m *Manager) LiquidateAll(ctx context.Context, runID string, prices map[string]float64, reason string) []ExitResult {
	open, err := m.trades.FindOpen(ctx)
	if err != nil {
		logger.WithError(err).Error("Liquidation skipped: cannot list open trades")
		return nil
	}

	var results []ExitResult
	for _, tr := range open {
		price, ok := prices[tr.Symbol]
		if !ok || price <= 0 {
			price = tr.Price
		}
		results = append(results, m.close(ctx, runID, tr, price, model.StrategySafetyMode, reason))
	}
	return results
}

func (m *Manager) close(ctx context.Context, runID string, tr model.Trade, price float64, tag, reason string) ExitResult {
	res := ExitResult{
		TradeID: tr.ID,
		Symbol:  tr.Symbol,
		Reason:  reason,
		Price:   price,
		Amount:  tr.Amount,
	}

	fill, err := m.closer.ClosePosition(ctx, runID, tr, price, tag, reason)
	if fill == nil {
		logger.WithError(err).WithFields(map[string]interface{}{
			"trade_id": tr.ID,
			"symbol":   tr.Symbol,
			"reason":   reason,
		}).Error("Failed to close position")
		res.Err = errString(err)
		return res
	}

	res.Closed = true
	res.Proceeds = fill.Cost
	if err != nil {
		res.Err = err.Error()
	}

	logger.WithFields(map[string]interface{}{
		"trade_id": tr.ID,
		"symbol":   tr.Symbol,
		"reason":   reason,
		"price":    price,
	}).Info("Closed position")
	return res
}

// DrawdownBreached loads today's snapshots, appends the live valuation and
// checks the running-peak drawdown against the configured daily limit. A
// snapshot read failure logs and reports no breach.
func (m *Manager) DrawdownBreached(ctx context.Context, liveValue float64, cfg strategy.Config) (float64, bool) {
	snaps, err := m.snapshots.FindSince(ctx, utils.StartOfDayUTC(m.now()))
	if err != nil {
		logger.WithError(err).Error("Drawdown check skipped: cannot load snapshots")
		return 0, false
	}

	values := make([]float64, 0, len(snaps))
	for _, s := range snaps {
		values = append(values, s.TotalValue)
	}
	return DailyDrawdownBreached(values, liveValue, cfg.MaxDailyDrawdown)
}

// Heartbeat records liveness and the expected running state so the status
// endpoint can tell "stopped on purpose" from "stopped unexpectedly".
func (m *Manager) Heartbeat(ctx context.Context, running bool) {
	if err := m.settings.Set(ctx, model.SettingBotHeartbeat, m.now().UTC().Format(time.RFC3339)); err != nil {
		logger.WithError(err).Error("Failed to write heartbeat")
	}
	if err := m.settings.Set(ctx, model.SettingBotExpectedRunning, strconv.FormatBool(running)); err != nil {
		logger.WithError(err).Error("Failed to write expected running state")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
