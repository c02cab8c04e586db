package strategy

import (
	"encoding/json"
	"testing"
)

func TestClampCoercesOutOfBoundsFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, Config)
	}{
		{
			name:   "allocation above max",
			mutate: func(c *Config) { c.AllocationPerTrade = 0.95 },
			check: func(t *testing.T, c Config) {
				if c.AllocationPerTrade != 0.50 {
					t.Fatalf("expected allocation clamped to 0.50, got %v", c.AllocationPerTrade)
				}
			},
		},
		{
			name:   "allocation below min",
			mutate: func(c *Config) { c.AllocationPerTrade = 0.001 },
			check: func(t *testing.T, c Config) {
				if c.AllocationPerTrade != 0.01 {
					t.Fatalf("expected allocation clamped to 0.01, got %v", c.AllocationPerTrade)
				}
			},
		},
		{
			name:   "negative max open positions",
			mutate: func(c *Config) { c.MaxOpenPositions = -3 },
			check: func(t *testing.T, c Config) {
				if c.MaxOpenPositions != 1 {
					t.Fatalf("expected max open positions clamped to 1, got %d", c.MaxOpenPositions)
				}
			},
		},
		{
			name:   "max pairs beyond hard cap",
			mutate: func(c *Config) { c.MaxPairs = 50 },
			check: func(t *testing.T, c Config) {
				if c.MaxPairs != 12 {
					t.Fatalf("expected max pairs clamped to 12, got %d", c.MaxPairs)
				}
			},
		},
		{
			name:   "macd fast not below slow restores defaults",
			mutate: func(c *Config) { c.MACDFast = 40; c.MACDSlow = 30 },
			check: func(t *testing.T, c Config) {
				if c.MACDFast != 12 || c.MACDSlow != 26 {
					t.Fatalf("expected macd defaults restored, got fast=%d slow=%d", c.MACDFast, c.MACDSlow)
				}
			},
		},
		{
			name:   "risk bounds swapped",
			mutate: func(c *Config) { c.MinRiskPerTrade = 0.04; c.MaxRiskPerTrade = 0.01 },
			check: func(t *testing.T, c Config) {
				if c.MinRiskPerTrade != 0.01 || c.MaxRiskPerTrade != 0.04 {
					t.Fatalf("expected risk bounds swapped, got min=%v max=%v", c.MinRiskPerTrade, c.MaxRiskPerTrade)
				}
			},
		},
		{
			name:   "inverted volatility band restores defaults",
			mutate: func(c *Config) { c.VolLow = 0.08; c.VolHigh = 0.01 },
			check: func(t *testing.T, c Config) {
				if c.VolLow != 0.005 || c.VolHigh != 0.03 {
					t.Fatalf("expected volatility defaults restored, got low=%v high=%v", c.VolLow, c.VolHigh)
				}
			},
		},
		{
			name:   "unknown timeframe restores default",
			mutate: func(c *Config) { c.Timeframes.Low = "7m" },
			check: func(t *testing.T, c Config) {
				if c.Timeframes.Low != "1h" {
					t.Fatalf("expected low timeframe restored to 1h, got %q", c.Timeframes.Low)
				}
			},
		},
		{
			name:   "timeframe case normalized",
			mutate: func(c *Config) { c.Timeframes.High = " 1D " },
			check: func(t *testing.T, c Config) {
				if c.Timeframes.High != "1d" {
					t.Fatalf("expected high timeframe normalized to 1d, got %q", c.Timeframes.High)
				}
			},
		},
		{
			name:   "lookback below candle minimum",
			mutate: func(c *Config) { c.Timeframes.Lookback = 10 },
			check: func(t *testing.T, c Config) {
				if c.Timeframes.Lookback != 50 {
					t.Fatalf("expected lookback clamped to 50, got %d", c.Timeframes.Lookback)
				}
			},
		},
		{
			name:   "pairs normalized and deduped",
			mutate: func(c *Config) { c.Pairs = []string{" btc/usdt ", "BTC/USDT", "bad", "eth/usdt"} },
			check: func(t *testing.T, c Config) {
				if len(c.Pairs) != 2 || c.Pairs[0] != "BTC/USDT" || c.Pairs[1] != "ETH/USDT" {
					t.Fatalf("unexpected normalized pairs: %v", c.Pairs)
				}
			},
		},
		{
			name:   "empty pairs restores defaults",
			mutate: func(c *Config) { c.Pairs = []string{"garbage"} },
			check: func(t *testing.T, c Config) {
				if len(c.Pairs) != 6 || c.Pairs[0] != "BTC/USDT" {
					t.Fatalf("expected default pairs restored, got %v", c.Pairs)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			cfg.Clamp()
			tc.check(t, cfg)
		})
	}
}

func TestClampIsIdempotentOnDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Clamp()

	want := DefaultConfig()
	got, _ := json.Marshal(cfg)
	expected, _ := json.Marshal(want)
	if string(got) != string(expected) {
		t.Fatalf("defaults changed under clamp:\n got %s\nwant %s", got, expected)
	}
}

func TestMergeParamsKeepsUnmentionedFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = 4
	cfg.UpdatedBy = "manual"

	merged, err := cfg.MergeParams([]byte(`{"rsi_buy": 28, "stop_loss_atr": 2.5, "unknown_key": 99}`))
	if err != nil {
		t.Fatalf("unexpected error merging params: %v", err)
	}

	if merged.RSIBuy != 28 {
		t.Fatalf("expected rsi_buy 28, got %v", merged.RSIBuy)
	}
	if merged.StopLossATR != 2.5 {
		t.Fatalf("expected stop_loss_atr 2.5, got %v", merged.StopLossATR)
	}
	if merged.RSISell != cfg.RSISell || merged.MaxPairs != cfg.MaxPairs {
		t.Fatalf("unmentioned fields changed: %+v", merged)
	}
	if merged.Version != 4 || merged.UpdatedBy != "manual" {
		t.Fatalf("identity fields must not be patched through params: %+v", merged)
	}
}

func TestMergeParamsClampsSuggestedValues(t *testing.T) {
	cfg := DefaultConfig()

	merged, err := cfg.MergeParams([]byte(`{"allocation_per_trade": 0.99, "max_open_positions": 100}`))
	if err != nil {
		t.Fatalf("unexpected error merging params: %v", err)
	}

	if merged.AllocationPerTrade != 0.50 {
		t.Fatalf("expected allocation clamped to 0.50, got %v", merged.AllocationPerTrade)
	}
	if merged.MaxOpenPositions != 20 {
		t.Fatalf("expected max open positions clamped to 20, got %d", merged.MaxOpenPositions)
	}
}

func TestMergeParamsRejectsMalformedJSON(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RSIBuy = 30

	merged, err := cfg.MergeParams([]byte(`{"rsi_buy": `))
	if err == nil {
		t.Fatalf("expected error for malformed params")
	}

	if merged.RSIBuy != 30 {
		t.Fatalf("config must be unchanged on merge failure, got %+v", merged)
	}
}

func TestParamBoundsMatchClamp(t *testing.T) {
	for name, bound := range ParamBounds() {
		patch, _ := json.Marshal(map[string]float64{name: bound.Max * 10})

		merged, err := DefaultConfig().MergeParams(patch)
		if err != nil {
			t.Fatalf("unexpected error merging %s: %v", name, err)
		}

		raw, _ := json.Marshal(merged)
		var asMap map[string]interface{}
		if err := json.Unmarshal(raw, &asMap); err != nil {
			t.Fatalf("unexpected error decoding merged config: %v", err)
		}

		got, ok := asMap[name].(float64)
		if !ok {
			t.Fatalf("field %s missing from serialized config", name)
		}
		if got > bound.Max {
			t.Fatalf("field %s not clamped: got %v, max %v", name, got, bound.Max)
		}
	}
}
