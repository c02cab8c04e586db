package pairs

import (
	"reflect"
	"testing"

	"spotpilot/src/model"
	"spotpilot/src/strategy"
)

func testSelector() *Selector {
	return (&Selector{}).WithThresholds(Config{
		MinQuoteVolume: 100000,
		MaxSpread:      0.005,
	})
}

func selectorConfig() strategy.Config {
	cfg := strategy.DefaultConfig()
	cfg.VolLow = 0.005
	cfg.VolHigh = 0.03
	cfg.MaxPairs = 5
	return cfg
}

func liquidTicker(symbol string, quoteVolume float64) model.Ticker {
	// 1% daily range, 0.1% spread: passes every filter.
	return model.Ticker{
		Symbol:      symbol,
		Last:        100,
		Bid:         99.9,
		Ask:         100,
		High:        101,
		Low:         100,
		QuoteVolume: quoteVolume,
	}
}

func TestSelectRanksByQuoteVolume(t *testing.T) {
	tickers := map[string]model.Ticker{
		"BTC/USDT": liquidTicker("BTC/USDT", 900000),
		"ETH/USDT": liquidTicker("ETH/USDT", 700000),
		"SOL/USDT": liquidTicker("SOL/USDT", 800000),
	}

	got := testSelector().Select(tickers, nil, selectorConfig())
	want := []string{"BTC/USDT", "SOL/USDT", "ETH/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSelectFilterChain(t *testing.T) {
	flat := liquidTicker("FLAT/USDT", 500000)
	flat.High = 100.1 // 0.1% daily range, below VolLow
	flat.Low = 100

	wild := liquidTicker("WILD/USDT", 500000)
	wild.High = 110 // 10% daily range, above 2*VolHigh
	wild.Low = 100

	wide := liquidTicker("WIDE/USDT", 500000)
	wide.Bid = 98 // 2% spread

	thin := liquidTicker("THIN/USDT", 1000)

	tickers := map[string]model.Ticker{
		"BTC/USDT":  liquidTicker("BTC/USDT", 900000),
		"FLAT/USDT": flat,
		"WILD/USDT": wild,
		"WIDE/USDT": wide,
		"THIN/USDT": thin,
	}

	got := testSelector().Select(tickers, nil, selectorConfig())
	want := []string{"BTC/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected only the liquid pair to survive, got %v", got)
	}
}

func TestSelectMissingQuoteVolumeExcludes(t *testing.T) {
	noVolume := liquidTicker("NOVOL/USDT", 0)

	got := testSelector().Select(map[string]model.Ticker{"NOVOL/USDT": noVolume}, nil, selectorConfig())
	if len(got) != 0 {
		t.Fatalf("pair without quote volume must be filtered, got %v", got)
	}
}

func TestSelectHeldSymbolsAlwaysFirst(t *testing.T) {
	tickers := map[string]model.Ticker{
		"BTC/USDT": liquidTicker("BTC/USDT", 900000),
		"ETH/USDT": liquidTicker("ETH/USDT", 800000),
	}

	// DOGE is held but fails every filter (not even in the ticker map).
	got := testSelector().Select(tickers, []string{"DOGE/USDT", "ETH/USDT"}, selectorConfig())
	want := []string{"DOGE/USDT", "ETH/USDT", "BTC/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected held-first ordering %v, got %v", want, got)
	}
}

func TestSelectRespectsMaxPairs(t *testing.T) {
	tickers := map[string]model.Ticker{}
	symbols := []string{"AAA/USDT", "BBB/USDT", "CCC/USDT", "DDD/USDT", "EEE/USDT", "FFF/USDT", "GGG/USDT"}
	for i, s := range symbols {
		tickers[s] = liquidTicker(s, float64(1000000-i*1000))
	}

	cfg := selectorConfig()
	cfg.MaxPairs = 3

	got := testSelector().Select(tickers, nil, cfg)
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %v", got)
	}
	want := []string{"AAA/USDT", "BBB/USDT", "CCC/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSelectFallsBackToAllowlistOnEmptyTickers(t *testing.T) {
	cfg := selectorConfig()
	cfg.Pairs = []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}

	got := testSelector().Select(nil, []string{"XRP/USDT"}, cfg)
	want := []string{"XRP/USDT", "BTC/USDT", "ETH/USDT", "SOL/USDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected allowlist fallback %v, got %v", want, got)
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	tickers := map[string]model.Ticker{
		"BTC/USDT": liquidTicker("BTC/USDT", 500000),
		"ETH/USDT": liquidTicker("ETH/USDT", 500000), // volume tie resolved by symbol
		"SOL/USDT": liquidTicker("SOL/USDT", 600000),
	}

	first := testSelector().Select(tickers, []string{"ADA/USDT"}, selectorConfig())
	for i := 0; i < 20; i++ {
		again := testSelector().Select(tickers, []string{"ADA/USDT"}, selectorConfig())
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("selection not deterministic: %v vs %v", first, again)
		}
	}

	want := []string{"ADA/USDT", "SOL/USDT", "BTC/USDT", "ETH/USDT"}
	if !reflect.DeepEqual(first, want) {
		t.Fatalf("expected %v, got %v", want, first)
	}
}

func TestSelectDeduplicatesHeld(t *testing.T) {
	got := testSelector().Select(nil, []string{"BTC/USDT", "BTC/USDT"}, selectorConfig())
	count := 0
	for _, s := range got {
		if s == "BTC/USDT" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("held symbols must be deduplicated, got %v", got)
	}
}
