package risk

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"spotpilot/src/model"
	"spotpilot/src/strategy"
)

type fakeTrades struct {
	open    []model.Trade
	openErr error
	marks   map[uint]float64
}

func (f *fakeTrades) FindOpen(context.Context) ([]model.Trade, error) {
	return f.open, f.openErr
}

func (f *fakeTrades) UpdateHighWaterMark(_ context.Context, id uint, mark float64) error {
	if f.marks == nil {
		f.marks = map[uint]float64{}
	}
	f.marks[id] = mark
	return nil
}

type fakeSnapshots struct {
	snaps []model.PortfolioSnapshot
	err   error
}

func (f *fakeSnapshots) FindSince(context.Context, time.Time) ([]model.PortfolioSnapshot, error) {
	return f.snaps, f.err
}

type fakeSettings struct {
	values map[string]string
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	if f.values == nil {
		f.values = map[string]string{}
	}
	f.values[key] = value
	return nil
}

type fakeCloser struct {
	closed []string
	err    error
}

func (f *fakeCloser) ClosePosition(_ context.Context, _ string, tr model.Trade, price float64, tag, reason string) (*model.OrderFill, error) {
	f.closed = append(f.closed, tr.Symbol+"|"+tag+"|"+reason)
	if f.err != nil {
		return nil, f.err
	}
	return &model.OrderFill{
		Symbol:   tr.Symbol,
		Side:     model.TradeSideSell,
		Amount:   tr.Amount,
		AvgPrice: price,
		Cost:     tr.Amount * price,
	}, nil
}

func testManager(ft *fakeTrades, fs *fakeSnapshots, fset *fakeSettings, fc *fakeCloser) *Manager {
	return &Manager{
		trades:    ft,
		snapshots: fs,
		settings:  fset,
		closer:    fc,
		now:       func() time.Time { return time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC) },
	}
}

func TestManageExitsClosesBreachedAndPersistsMarks(t *testing.T) {
	stopped := openTrade(100, floatPtr(95), floatPtr(200), nil)
	stopped.ID = 1
	stopped.Symbol = "BTC/USDT"

	healthy := openTrade(100, floatPtr(80), floatPtr(200), nil)
	healthy.ID = 2
	healthy.Symbol = "ETH/USDT"

	ft := &fakeTrades{open: []model.Trade{stopped, healthy}}
	fc := &fakeCloser{}
	m := testManager(ft, &fakeSnapshots{}, &fakeSettings{}, fc)

	results := m.ManageExits(context.Background(), "run-1", map[string]float64{
		"BTC/USDT": 94,
		"ETH/USDT": 105,
	}, strategy.DefaultConfig())

	if len(results) != 1 {
		t.Fatalf("results = %+v, want one exit", results)
	}
	r := results[0]
	if r.TradeID != 1 || r.Reason != ReasonStopLoss || !r.Closed {
		t.Fatalf("exit = %+v", r)
	}
	if math.Abs(r.Proceeds-0.5*94) > 1e-9 {
		t.Fatalf("proceeds = %v", r.Proceeds)
	}
	if want := "BTC/USDT|" + model.StrategyRiskManager + "|" + ReasonStopLoss; len(fc.closed) != 1 || fc.closed[0] != want {
		t.Fatalf("closed = %v, want [%s]", fc.closed, want)
	}
	// The surviving trade's new high must be persisted.
	if got := ft.marks[2]; got != 105 {
		t.Fatalf("mark for trade 2 = %v, want 105", got)
	}
}

func TestManageExitsSkipsTradesWithoutPrice(t *testing.T) {
	tr := openTrade(100, floatPtr(95), floatPtr(110), nil)
	ft := &fakeTrades{open: []model.Trade{tr}}
	fc := &fakeCloser{}
	m := testManager(ft, &fakeSnapshots{}, &fakeSettings{}, fc)

	results := m.ManageExits(context.Background(), "run-1", map[string]float64{}, strategy.DefaultConfig())

	if len(results) != 0 || len(fc.closed) != 0 {
		t.Fatalf("results = %+v closed = %v, want untouched", results, fc.closed)
	}
}

func TestManageExitsReportsCloseFailure(t *testing.T) {
	tr := openTrade(100, floatPtr(95), floatPtr(110), nil)
	ft := &fakeTrades{open: []model.Trade{tr}}
	fc := &fakeCloser{err: errors.New("order rejected")}
	m := testManager(ft, &fakeSnapshots{}, &fakeSettings{}, fc)

	results := m.ManageExits(context.Background(), "run-1", map[string]float64{"BTC/USDT": 90}, strategy.DefaultConfig())

	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Closed || results[0].Err == "" {
		t.Fatalf("failed close = %+v, want Closed=false with error", results[0])
	}
}

func TestLiquidateAllUsesSafetyTag(t *testing.T) {
	btc := openTrade(100, nil, nil, nil)
	btc.ID = 1
	btc.Symbol = "BTC/USDT"
	eth := openTrade(50, nil, nil, nil)
	eth.ID = 2
	eth.Symbol = "ETH/USDT"

	ft := &fakeTrades{open: []model.Trade{btc, eth}}
	fc := &fakeCloser{}
	m := testManager(ft, &fakeSnapshots{}, &fakeSettings{}, fc)

	// ETH has no live price and must fall back to its entry price.
	results := m.LiquidateAll(context.Background(), "run-1", map[string]float64{"BTC/USDT": 101}, "macro-event liquidation")

	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}
	for _, call := range fc.closed {
		if !strings.Contains(call, "|"+model.StrategySafetyMode+"|") {
			t.Fatalf("call %q missing safety tag", call)
		}
	}
	if results[1].Price != 50 {
		t.Fatalf("fallback price = %v, want entry 50", results[1].Price)
	}
}

func TestDrawdownBreached(t *testing.T) {
	fs := &fakeSnapshots{snaps: []model.PortfolioSnapshot{
		{TotalValue: 100}, {TotalValue: 110},
	}}
	m := testManager(&fakeTrades{}, fs, &fakeSettings{}, &fakeCloser{})

	cfg := strategy.DefaultConfig()
	cfg.MaxDailyDrawdown = 0.10

	dd, breached := m.DrawdownBreached(context.Background(), 95, cfg)
	if !breached {
		t.Fatalf("dd %v should breach 10%%", dd)
	}

	if dd, breached := m.DrawdownBreached(context.Background(), 107, cfg); breached {
		t.Fatalf("dd %v should not breach", dd)
	}
}

func TestDrawdownCheckFailsOpen(t *testing.T) {
	fs := &fakeSnapshots{err: errors.New("db down")}
	m := testManager(&fakeTrades{}, fs, &fakeSettings{}, &fakeCloser{})

	dd, breached := m.DrawdownBreached(context.Background(), 95, strategy.DefaultConfig())
	if breached || dd != 0 {
		t.Fatalf("store failure must not halt: dd=%v breached=%v", dd, breached)
	}
}

func TestHeartbeat(t *testing.T) {
	fset := &fakeSettings{}
	m := testManager(&fakeTrades{}, &fakeSnapshots{}, fset, &fakeCloser{})

	m.Heartbeat(context.Background(), true)

	if got := fset.values[model.SettingBotHeartbeat]; got != "2026-03-10T14:30:00Z" {
		t.Fatalf("heartbeat = %q", got)
	}
	if got := fset.values[model.SettingBotExpectedRunning]; got != "true" {
		t.Fatalf("expected_running = %q", got)
	}

	m.Heartbeat(context.Background(), false)
	if got := fset.values[model.SettingBotExpectedRunning]; got != "false" {
		t.Fatalf("expected_running after stop = %q", got)
	}
}
