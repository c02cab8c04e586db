package tuner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
	"spotpilot/src/strategy"
	"spotpilot/src/utils"
)

const (
	snapshotLookback  = 30 * 24 * time.Hour
	tradeHistoryLimit = 200

	newsLookback  = 48 * time.Hour
	newsLookahead = 7 * 24 * time.Hour

	calendarRefreshEvery = 24 * time.Hour
	calendarLookback     = 12 * time.Hour
	calendarLookahead    = 7 * 24 * time.Hour
)

// Advisory windows, one consult each per UTC day.
const (
	WindowAM = "AM"
	WindowPM = "PM"
)

type advisorClient interface {
	Suggest(ctx context.Context, payload string) (*model.StrategySuggestion, error)
}

type calendarClient interface {
	FetchHighImpact(ctx context.Context, from, to time.Time) ([]model.EconomicEvent, error)
}

type settingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type tradeStore interface {
	FindRecent(ctx context.Context, limit int) ([]model.Trade, error)
}

type snapshotStore interface {
	FindSince(ctx context.Context, since time.Time) ([]model.PortfolioSnapshot, error)
}

type configStore interface {
	Load(ctx context.Context) strategy.Config
	Save(ctx context.Context, cfg strategy.Config) error
}

var (
	newSettingsStore = func() settingsStore { return repository.NewSettingsRepository() }
	newTradeStore    = func() tradeStore { return repository.NewTradeRepository() }
	newSnapshotStore = func() snapshotStore { return repository.NewSnapshotRepository() }
)

// Outcome reports one tuning attempt for the run report.
type Outcome struct {
	Attempted bool   `json:"attempted"`
	Applied   bool   `json:"applied"`
	Window    string `json:"window,omitempty"`
	Note      string `json:"note,omitempty"`
	Err       string `json:"error,omitempty"`
}

// Tuner consults the advisory service at most once per AM/PM window per UTC
// day and merges validated suggestions into the strategy configuration. It
// also owns the economic-calendar cache the risk manager reads. Any advisory
// failure leaves the current configuration untouched.
type Tuner struct {
	advisor   advisorClient
	calendar  calendarClient
	settings  settingsStore
	trades    tradeStore
	snapshots snapshotStore
	configs   configStore

	now func() time.Time
}

func New(advisor advisorClient, calendar calendarClient, configs configStore) *Tuner {
	return &Tuner{
		advisor:   advisor,
		calendar:  calendar,
		settings:  newSettingsStore(),
		trades:    newTradeStore(),
		snapshots: newSnapshotStore(),
		configs:   configs,
		now:       time.Now,
	}
}

// MaybeTune consults the advisor unless the current window was already
// consumed today.
func (t *Tuner) MaybeTune(ctx context.Context, pairs []string, totalValue float64) Outcome {
	now := t.now().UTC()
	window, key := windowKey(now)

	stamp, err := t.settings.Get(ctx, key)
	if err == nil && stamp == utils.DayKeyUTC(now) {
		return Outcome{Window: window, Note: "window already consulted"}
	}

	return t.consult(ctx, window, key, pairs, totalValue)
}

// ForceTune consults the advisor regardless of the window gate. A successful
// consult still consumes the current window.
func (t *Tuner) ForceTune(ctx context.Context, pairs []string, totalValue float64) Outcome {
	window, key := windowKey(t.now().UTC())
	return t.consult(ctx, window, key, pairs, totalValue)
}

func (t *Tuner) consult(ctx context.Context, window, key string, pairs []string, totalValue float64) Outcome {
	out := Outcome{Attempted: true, Window: window}

	payload, err := t.buildPayload(ctx, pairs, totalValue)
	if err != nil {
		out.Err = err.Error()
		logger.WithError(err).Warn("Tuner payload build failed")
		return out
	}

	suggestion, err := t.advisor.Suggest(ctx, payload)
	if err != nil {
		out.Err = err.Error()
		logger.WithError(err).Warn("Advisory consult failed, keeping current config")
		return out
	}

	current := t.configs.Load(ctx)
	merged, err := current.MergeParams(suggestion.Params)
	if err != nil {
		out.Err = fmt.Sprintf("merge suggestion: %v", err)
		logger.WithError(err).Warn("Suggestion params rejected, keeping current config")
		return out
	}

	merged.Version = current.Version + 1
	merged.UpdatedBy = "tuner"

	if err := t.configs.Save(ctx, merged); err != nil {
		out.Err = fmt.Sprintf("save config: %v", err)
		logger.WithError(err).Error("Failed to persist tuned config")
		return out
	}

	if err := t.settings.Set(ctx, key, utils.DayKeyUTC(t.now().UTC())); err != nil {
		// Config already applied; a missing stamp only means a possible
		// re-consult later in the window.
		logger.WithError(err).Warn("Failed to stamp tuner window")
	}

	out.Applied = true
	out.Note = suggestion.Notes
	logger.WithFields(map[string]interface{}{
		"window":     window,
		"strategy":   suggestion.StrategyName,
		"confidence": suggestion.Confidence,
		"version":    merged.Version,
	}).Info("Applied tuned strategy config")
	return out
}

func windowKey(now time.Time) (string, string) {
	if now.Hour() < 12 {
		return WindowAM, model.SettingTunerLastConsultAM
	}
	return WindowPM, model.SettingTunerLastConsultPM
}

type snapshotPoint struct {
	Time       time.Time `json:"time"`
	TotalValue float64   `json:"total_value"`
}

type tradeSummary struct {
	Symbol   string    `json:"symbol"`
	Side     string    `json:"side"`
	Amount   float64   `json:"amount"`
	Price    float64   `json:"price"`
	Cost     float64   `json:"cost"`
	Strategy string    `json:"strategy"`
	Status   string    `json:"status"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

type advisorPayload struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	TotalValue  float64                   `json:"total_value"`
	Pairs       []string                  `json:"pairs"`
	Config      strategy.Config           `json:"config"`
	Bounds      map[string]strategy.Bound `json:"bounds"`
	Snapshots   []snapshotPoint           `json:"snapshots"`
	Trades      []tradeSummary            `json:"trades"`
	News        []string                  `json:"news"`
}

// buildPayload assembles the advisory context. History reads and the news
// digest degrade to empty sections on failure so a flaky feed never blocks
// a consult.
func (t *Tuner) buildPayload(ctx context.Context, pairs []string, totalValue float64) (string, error) {
	now := t.now().UTC()

	payload := advisorPayload{
		GeneratedAt: now,
		TotalValue:  totalValue,
		Pairs:       pairs,
		Config:      t.configs.Load(ctx),
		Bounds:      strategy.ParamBounds(),
		Snapshots:   []snapshotPoint{},
		Trades:      []tradeSummary{},
		News:        []string{},
	}

	snaps, err := t.snapshots.FindSince(ctx, now.Add(-snapshotLookback))
	if err != nil {
		logger.WithError(err).Warn("Tuner snapshot history unavailable")
	}
	for _, s := range snaps {
		payload.Snapshots = append(payload.Snapshots, snapshotPoint{Time: s.CreatedAt, TotalValue: s.TotalValue})
	}

	trades, err := t.trades.FindRecent(ctx, tradeHistoryLimit)
	if err != nil {
		logger.WithError(err).Warn("Tuner trade history unavailable")
	}
	for _, tr := range trades {
		payload.Trades = append(payload.Trades, tradeSummary{
			Symbol:   tr.Symbol,
			Side:     tr.Side,
			Amount:   tr.Amount,
			Price:    tr.Price,
			Cost:     tr.Cost,
			Strategy: tr.Strategy,
			Status:   tr.Status,
			Reason:   tr.Reason,
			At:       tr.CreatedAt,
		})
	}

	payload.News = t.newsDigest(ctx, now)

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal advisor payload: %w", err)
	}
	return string(raw), nil
}

func (t *Tuner) newsDigest(ctx context.Context, now time.Time) []string {
	events, err := t.calendar.FetchHighImpact(ctx, now.Add(-newsLookback), now.Add(newsLookahead))
	if err != nil {
		logger.WithError(err).Warn("News digest unavailable")
		return []string{}
	}

	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("%s [%s] %s", ev.Time.UTC().Format("2006-01-02 15:04"), ev.Country, ev.Title))
	}
	return lines
}

// RefreshCalendar re-fetches the high-impact event cache at most once per
// 24h, or immediately when forced. The stored events feed the macro-event
// halt between refreshes.
func (t *Tuner) RefreshCalendar(ctx context.Context, force bool) error {
	now := t.now().UTC()

	if !force {
		raw, err := t.settings.Get(ctx, model.SettingCalendarRefreshedAt)
		if err == nil && raw != "" {
			if at, perr := time.Parse(time.RFC3339, raw); perr == nil && now.Sub(at) < calendarRefreshEvery {
				return nil
			}
		}
	}

	events, err := t.calendar.FetchHighImpact(ctx, now.Add(-calendarLookback), now.Add(calendarLookahead))
	if err != nil {
		return fmt.Errorf("refresh calendar: %w", err)
	}

	raw, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("marshal calendar events: %w", err)
	}
	if err := t.settings.Set(ctx, model.SettingCalendarEvents, string(raw)); err != nil {
		return err
	}
	if err := t.settings.Set(ctx, model.SettingCalendarRefreshedAt, now.Format(time.RFC3339)); err != nil {
		return err
	}

	logger.WithField("events", len(events)).Info("Economic calendar refreshed")
	return nil
}

// StoredEvents returns the cached high-impact events, oldest first. Missing
// or unreadable cache degrades to none.
func (t *Tuner) StoredEvents(ctx context.Context) []model.EconomicEvent {
	raw, err := t.settings.Get(ctx, model.SettingCalendarEvents)
	if err != nil || raw == "" {
		return nil
	}

	var events []model.EconomicEvent
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		logger.WithError(err).Warn("Stored calendar events unreadable")
		return nil
	}
	return events
}
