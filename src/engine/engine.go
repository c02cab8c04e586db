package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/connectors"
	"spotpilot/src/model"
	"spotpilot/src/pairs"
	"spotpilot/src/rebalance"
	"spotpilot/src/repository"
	"spotpilot/src/risk"
	"spotpilot/src/signal"
	"spotpilot/src/strategy"
	"spotpilot/src/trader"
	"spotpilot/src/tuner"
)

type marketData interface {
	Tickers(ctx context.Context, symbols []string) (map[string]model.Ticker, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error)
	Balances(ctx context.Context) ([]model.Balance, error)
}

type pairSelector interface {
	Select(tickers map[string]model.Ticker, held []string, cfg strategy.Config) []string
}

type planExecutor interface {
	Execute(ctx context.Context, runID string, signals map[string]signal.Result, pf model.Portfolio, cfg strategy.Config) []rebalance.PlanStep
}

type riskManager interface {
	ManageExits(ctx context.Context, runID string, prices map[string]float64, cfg strategy.Config) []risk.ExitResult
	LiquidateAll(ctx context.Context, runID string, prices map[string]float64, reason string) []risk.ExitResult
	DrawdownBreached(ctx context.Context, liveValue float64, cfg strategy.Config) (float64, bool)
	Heartbeat(ctx context.Context, running bool)
}

type autoTuner interface {
	MaybeTune(ctx context.Context, pairs []string, totalValue float64) tuner.Outcome
	ForceTune(ctx context.Context, pairs []string, totalValue float64) tuner.Outcome
	RefreshCalendar(ctx context.Context, force bool) error
	StoredEvents(ctx context.Context) []model.EconomicEvent
}

type configStore interface {
	Load(ctx context.Context) strategy.Config
}

type settingsStore interface {
	Get(ctx context.Context, key string) (string, error)
}

type snapshotStore interface {
	Append(ctx context.Context, snap *model.PortfolioSnapshot) error
}

type botLogStore interface {
	Append(ctx context.Context, entry *model.BotLog) error
}

// Engine orchestrates one trading run end to end: gates, valuation, risk
// exits, scoring, rebalancing, persistence and tuning. Runs are serialized;
// a second trigger blocks until the current run finishes.
type Engine struct {
	cfg Config

	market    marketData
	selector  pairSelector
	planner   planExecutor
	riskMgr   riskManager
	tuner     autoTuner
	configs   configStore
	settings  settingsStore
	snapshots snapshotStore
	botLogs   botLogStore

	runMu sync.Mutex
	now   func() time.Time
}

// NewEngine wires the production dependency graph: one goex-backed exchange
// client shared by market data and order execution, the rebalance planner
// and risk manager both executing through the trader, and the tuner owning
// the advisory and calendar clients.
func NewEngine() *Engine {
	exchange := connectors.NewExchangeClient(connectors.ResolveCredentials(context.Background()))
	trd := trader.New(exchange)
	store := strategy.NewStore()

	return &Engine{
		cfg:       GetConfig(),
		market:    exchange,
		selector:  pairs.NewSelector(),
		planner:   rebalance.NewPlanner(trd),
		riskMgr:   risk.NewManager(trd),
		tuner:     tuner.New(connectors.NewAdvisorClient(), connectors.NewCalendarClient(), store),
		configs:   store,
		settings:  repository.NewSettingsRepository(),
		snapshots: repository.NewSnapshotRepository(),
		botLogs:   repository.NewBotLogRepository(),
		now:       time.Now,
	}
}

// RunOnce executes one complete trading run within the configured budget
// and always returns a report. A panic anywhere inside is converted into a
// failed report; persisted state stays as of the last successful write.
func (e *Engine) RunOnce(ctx context.Context) (report *RunReport) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	report = &RunReport{RunID: uuid.NewString(), StartedAt: e.now().UTC()}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Error("Trading run panicked")
			report.Success = false
			report.Err = fmt.Sprintf("panic: %v", r)
		}
		report.FinishedAt = e.now().UTC()
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RunBudget)
	defer cancel()

	log := logger.WithField("run_id", report.RunID)
	cfg := e.configs.Load(ctx)

	if !e.enabled(ctx) {
		report.Success = true
		report.Halt = HaltDisabled
		e.riskMgr.Heartbeat(ctx, false)
		log.Info("Bot disabled, skipping run")
		return report
	}
	e.riskMgr.Heartbeat(ctx, true)

	if err := e.tuner.RefreshCalendar(ctx, false); err != nil {
		log.WithError(err).Warn("Calendar refresh failed, using cached events")
	}

	pf, tickers, err := e.valuation(ctx, cfg)
	if err != nil {
		report.Err = err.Error()
		log.WithError(err).Error("Valuation failed, aborting run")
		e.logRun(ctx, report)
		return report
	}
	report.TotalValue = pf.TotalValue
	log.WithFields(map[string]interface{}{
		"total_value": pf.TotalValue,
		"holdings":    len(pf.Holdings),
	}).Info("Portfolio valued")

	prices := lastPrices(tickers)
	report.RiskExits = e.riskMgr.ManageExits(ctx, report.RunID, prices, cfg)
	pf = applyExits(pf, report.RiskExits)

	if event, halted := risk.CheckMacroWindow(e.now().UTC(), e.tuner.StoredEvents(ctx)); halted {
		report.Success = true
		report.Halt = HaltMacroEvent
		log.WithFields(map[string]interface{}{
			"event": event.Title,
			"at":    event.Time,
		}).Warn("High-impact macro event window, liquidating")
		exits := e.riskMgr.LiquidateAll(ctx, report.RunID, prices, "macro event: "+event.Title)
		report.RiskExits = append(report.RiskExits, exits...)
		pf = applyExits(pf, exits)
		e.persistRun(ctx, report, pf)
		return report
	}

	drawdown, breached := e.riskMgr.DrawdownBreached(ctx, pf.TotalValue, cfg)
	report.Drawdown = drawdown
	if breached {
		report.Success = true
		report.Halt = HaltDrawdown
		log.WithField("drawdown", drawdown).Warn("Daily drawdown limit reached, no trading this run")
		e.persistRun(ctx, report, pf)
		return report
	}

	report.Pairs = e.selector.Select(tickers, pf.HoldingSymbols(), cfg)
	report.PerPair = e.analyze(ctx, report.Pairs, cfg)

	signals := make(map[string]signal.Result, len(report.PerPair))
	for _, outcome := range report.PerPair {
		signals[outcome.Symbol] = outcome.Signal
	}

	report.Plan = e.planner.Execute(ctx, report.RunID, signals, pf, cfg)
	report.Success = true

	e.persistRun(ctx, report, pf)

	tune := e.tuner.MaybeTune(ctx, report.Pairs, pf.TotalValue)
	report.Tune = &tune

	log.WithFields(map[string]interface{}{
		"pairs":      len(report.Pairs),
		"plan_steps": len(report.Plan),
		"risk_exits": len(report.RiskExits),
	}).Info("Trading run completed")
	return report
}

// StartLoop drives RunOnce on the configured period until the context is
// cancelled. A failed run is logged and the loop keeps going.
func (e *Engine) StartLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.LoopPeriod)
	defer ticker.Stop()

	logger.WithField("period", e.cfg.LoopPeriod.String()).Info("Trading loop started")
	for {
		select {
		case <-ctx.Done():
			logger.Info("loop stopped")
			return nil
		case <-ticker.C:
			logger.Info("loop tick")
			report := e.RunOnce(ctx)
			if !report.Success {
				logger.WithField("error", report.Err).Error("Trading run failed")
			}
		}
	}
}

// AnalyzeSymbol scores a single pair with the current configuration.
func (e *Engine) AnalyzeSymbol(ctx context.Context, symbol string) (signal.Result, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	cfg := e.configs.Load(ctx)

	snaps, err := e.timeframeSnapshots(ctx, symbol, cfg)
	if err != nil {
		return signal.Hold(symbol), err
	}
	return signal.Score(symbol, snaps, cfg), nil
}

// ForceTune runs an advisory consult immediately, bypassing the window
// gate. Valuation failures degrade the payload to the configured pairs
// with an unknown total.
func (e *Engine) ForceTune(ctx context.Context) tuner.Outcome {
	cfg := e.configs.Load(ctx)

	universe := cfg.Pairs
	total := 0.0
	if pf, tickers, err := e.valuation(ctx, cfg); err == nil {
		total = pf.TotalValue
		universe = e.selector.Select(tickers, pf.HoldingSymbols(), cfg)
	} else {
		logger.WithError(err).Warn("Valuation unavailable for tune payload")
	}

	return e.tuner.ForceTune(ctx, universe, total)
}

// RefreshCalendar forwards to the tuner's calendar cache.
func (e *Engine) RefreshCalendar(ctx context.Context, force bool) error {
	return e.tuner.RefreshCalendar(ctx, force)
}

// CalendarEvents returns the cached high-impact events.
func (e *Engine) CalendarEvents(ctx context.Context) []model.EconomicEvent {
	return e.tuner.StoredEvents(ctx)
}

// valuation fetches balances and the ticker snapshot for the configured
// universe plus every held asset. Only a balance failure is fatal; with no
// tickers the run proceeds on the quote balance alone.
func (e *Engine) valuation(ctx context.Context, cfg strategy.Config) (model.Portfolio, map[string]model.Ticker, error) {
	balances, err := e.market.Balances(ctx)
	if err != nil {
		return model.Portfolio{}, nil, fmt.Errorf("balances: %w", err)
	}

	quote := strings.ToUpper(e.cfg.QuoteCurrency)
	wanted := append([]string(nil), cfg.Pairs...)
	for _, b := range balances {
		asset := strings.ToUpper(b.Asset)
		if asset == quote {
			continue
		}
		wanted = append(wanted, asset+"/"+quote)
	}

	tickers, err := e.market.Tickers(ctx, wanted)
	if err != nil {
		logger.WithError(err).Warn("Ticker snapshot unavailable, valuing quote balance only")
		tickers = map[string]model.Ticker{}
	}

	return BuildPortfolio(balances, tickers, quote), tickers, nil
}

func (e *Engine) enabled(ctx context.Context) bool {
	raw, err := e.settings.Get(ctx, model.SettingBotEnabled)
	if err != nil || raw == "" {
		return true
	}
	on, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return on
}

func (e *Engine) persistRun(ctx context.Context, report *RunReport, pf model.Portfolio) {
	breakdown, err := json.Marshal(pf.Holdings)
	if err != nil {
		breakdown = []byte("{}")
	}
	snap := &model.PortfolioSnapshot{TotalValue: pf.TotalValue, Breakdown: string(breakdown)}
	if err := e.snapshots.Append(ctx, snap); err != nil {
		logger.WithError(err).Warn("Failed to append portfolio snapshot")
	}

	e.logRun(ctx, report)
}

func (e *Engine) logRun(ctx context.Context, report *RunReport) {
	level := "info"
	message := "Trading run completed"
	switch {
	case !report.Success:
		level = "error"
		message = "Trading run failed"
	case report.Halt != "":
		message = "Trading run halted: " + report.Halt
	}

	detail, err := json.Marshal(report)
	if err != nil {
		detail = []byte(`{}`)
	}

	entry := &model.BotLog{Level: level, Scope: "engine", Message: message, Detail: string(detail)}
	if err := e.botLogs.Append(ctx, entry); err != nil {
		logger.WithError(err).Warn("Failed to append bot log")
	}
}
