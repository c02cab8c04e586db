package strategy

import (
	"encoding/json"
	"strings"

	"spotpilot/src/utils"
)

// Timeframes names the three analysis horizons and the candle lookback
// applied to each of them.
type Timeframes struct {
	High     string `json:"high"`
	Mid      string `json:"mid"`
	Low      string `json:"low"`
	Lookback int    `json:"lookback"`
}

// Config is the runtime strategy configuration. It is serialized as JSON
// under the strategy.config setting and is always clamped before use, so
// downstream code can assume every field sits inside its documented bounds.
type Config struct {
	Pairs              []string   `json:"pairs"`
	AllocationPerTrade float64    `json:"allocation_per_trade"`
	MinTradeNotional   float64    `json:"min_trade_notional"`
	Timeframes         Timeframes `json:"timeframes"`
	MinRiskPerTrade    float64    `json:"min_risk_per_trade"`
	MaxRiskPerTrade    float64    `json:"max_risk_per_trade"`
	MaxDailyDrawdown   float64    `json:"max_daily_drawdown"`
	MaxOpenPositions   int        `json:"max_open_positions"`
	MaxPairs           int        `json:"max_pairs"`
	StopLossATR        float64    `json:"stop_loss_atr"`
	TakeProfitATR      float64    `json:"take_profit_atr"`
	TrailingStopATR    float64    `json:"trailing_stop_atr"`
	RSIBuy             float64    `json:"rsi_buy"`
	RSISell            float64    `json:"rsi_sell"`
	BollingerPeriod    int        `json:"bollinger_period"`
	BollingerStdDev    float64    `json:"bollinger_std_dev"`
	StochK             int        `json:"stoch_k"`
	StochD             int        `json:"stoch_d"`
	MACDFast           int        `json:"macd_fast"`
	MACDSlow           int        `json:"macd_slow"`
	MACDSignal         int        `json:"macd_signal"`
	VolLow             float64    `json:"vol_low"`
	VolHigh            float64    `json:"vol_high"`
	TrendThreshold     float64    `json:"trend_threshold"`
	ConfidenceFloor    float64    `json:"confidence_floor"`
	Version            int        `json:"version"`
	UpdatedBy          string     `json:"updated_by"`
}

const maxAllowedPairs = 24

var validTimeframes = map[string]bool{
	"15m": true,
	"30m": true,
	"1h":  true,
	"4h":  true,
	"1d":  true,
}

// DefaultConfig returns the built-in configuration, version 1.
func DefaultConfig() Config {
	return Config{
		Pairs: []string{
			"BTC/USDT", "ETH/USDT", "SOL/USDT", "BNB/USDT", "XRP/USDT", "ADA/USDT",
		},
		AllocationPerTrade: 0.10,
		MinTradeNotional:   10.0,
		Timeframes: Timeframes{
			High:     "1d",
			Mid:      "4h",
			Low:      "1h",
			Lookback: 120,
		},
		MinRiskPerTrade:  0.005,
		MaxRiskPerTrade:  0.02,
		MaxDailyDrawdown: 0.10,
		MaxOpenPositions: 5,
		MaxPairs:         8,
		StopLossATR:      2.0,
		TakeProfitATR:    3.0,
		TrailingStopATR:  0,
		RSIBuy:           35,
		RSISell:          70,
		BollingerPeriod:  20,
		BollingerStdDev:  2.0,
		StochK:           14,
		StochD:           3,
		MACDFast:         12,
		MACDSlow:         26,
		MACDSignal:       9,
		VolLow:           0.005,
		VolHigh:          0.03,
		TrendThreshold:   0.30,
		ConfidenceFloor:  0.35,
		Version:          1,
		UpdatedBy:        "default",
	}
}

// Clamp coerces every field into its documented bounds, normalizes the pair
// list and timeframe names, and restores defaults where a value cannot be
// repaired. After Clamp the config is always safe to trade on.
func (c *Config) Clamp() {
	defaults := DefaultConfig()

	c.Pairs = normalizePairs(c.Pairs, defaults.Pairs)

	c.AllocationPerTrade = utils.Clamp(c.AllocationPerTrade, 0.01, 0.50)
	c.MinTradeNotional = utils.Clamp(c.MinTradeNotional, 1, 1000)

	c.Timeframes.High = normalizeTimeframe(c.Timeframes.High, defaults.Timeframes.High)
	c.Timeframes.Mid = normalizeTimeframe(c.Timeframes.Mid, defaults.Timeframes.Mid)
	c.Timeframes.Low = normalizeTimeframe(c.Timeframes.Low, defaults.Timeframes.Low)
	c.Timeframes.Lookback = utils.ClampInt(c.Timeframes.Lookback, 50, 720)

	c.MinRiskPerTrade = utils.Clamp(c.MinRiskPerTrade, 0.0005, 0.05)
	c.MaxRiskPerTrade = utils.Clamp(c.MaxRiskPerTrade, 0.001, 0.20)
	c.MaxDailyDrawdown = utils.Clamp(c.MaxDailyDrawdown, 0.02, 0.50)
	c.MaxOpenPositions = utils.ClampInt(c.MaxOpenPositions, 1, 20)
	c.MaxPairs = utils.ClampInt(c.MaxPairs, 1, 12)

	c.StopLossATR = utils.Clamp(c.StopLossATR, 0.5, 10)
	c.TakeProfitATR = utils.Clamp(c.TakeProfitATR, 0.5, 20)
	c.TrailingStopATR = utils.Clamp(c.TrailingStopATR, 0, 10)

	c.RSIBuy = utils.Clamp(c.RSIBuy, 10, 50)
	c.RSISell = utils.Clamp(c.RSISell, 50, 90)
	c.BollingerPeriod = utils.ClampInt(c.BollingerPeriod, 5, 100)
	c.BollingerStdDev = utils.Clamp(c.BollingerStdDev, 1, 4)
	c.StochK = utils.ClampInt(c.StochK, 3, 50)
	c.StochD = utils.ClampInt(c.StochD, 1, 20)
	c.MACDFast = utils.ClampInt(c.MACDFast, 2, 50)
	c.MACDSlow = utils.ClampInt(c.MACDSlow, 5, 100)
	c.MACDSignal = utils.ClampInt(c.MACDSignal, 2, 50)

	c.VolLow = utils.Clamp(c.VolLow, 0.0005, 0.10)
	c.VolHigh = utils.Clamp(c.VolHigh, 0.005, 0.50)
	c.TrendThreshold = utils.Clamp(c.TrendThreshold, 0.05, 0.90)
	c.ConfidenceFloor = utils.Clamp(c.ConfidenceFloor, 0.10, 0.90)

	// Cross-field repairs.
	if c.MACDFast >= c.MACDSlow {
		c.MACDFast = defaults.MACDFast
		c.MACDSlow = defaults.MACDSlow
	}
	if c.MinRiskPerTrade > c.MaxRiskPerTrade {
		c.MinRiskPerTrade, c.MaxRiskPerTrade = c.MaxRiskPerTrade, c.MinRiskPerTrade
	}
	if c.VolLow >= c.VolHigh {
		c.VolLow = defaults.VolLow
		c.VolHigh = defaults.VolHigh
	}

	if c.Version < 1 {
		c.Version = 1
	}
	if c.UpdatedBy == "" {
		c.UpdatedBy = defaults.UpdatedBy
	}
}

// MergeParams overlays a partial JSON object (advisor params or a manual
// patch) onto a copy of the config. Fields absent from the patch keep their
// current values; unknown keys are ignored. The result is clamped.
func (c Config) MergeParams(params []byte) (Config, error) {
	merged := c
	merged.Pairs = append([]string(nil), c.Pairs...)

	if len(params) > 0 {
		if err := json.Unmarshal(params, &merged); err != nil {
			return c, err
		}
	}

	// Identity fields are never patched through params.
	merged.Version = c.Version
	merged.UpdatedBy = c.UpdatedBy

	merged.Clamp()
	return merged, nil
}

func normalizePairs(pairs, fallback []string) []string {
	seen := make(map[string]bool, len(pairs))
	cleaned := make([]string, 0, len(pairs))

	for _, pair := range pairs {
		symbol := strings.ToUpper(strings.TrimSpace(pair))
		base, quote, ok := strings.Cut(symbol, "/")
		if !ok || base == "" || quote == "" {
			continue
		}
		if seen[symbol] {
			continue
		}
		seen[symbol] = true
		cleaned = append(cleaned, symbol)
	}

	if len(cleaned) == 0 {
		return append([]string(nil), fallback...)
	}
	if len(cleaned) > maxAllowedPairs {
		cleaned = cleaned[:maxAllowedPairs]
	}
	return cleaned
}

func normalizeTimeframe(tf, fallback string) string {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if validTimeframes[tf] {
		return tf
	}
	return fallback
}

// Bound describes the allowed range for one tunable numeric field.
type Bound struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// ParamBounds lists the tunable numeric fields by their JSON names together
// with the range Clamp enforces. The advisory prompt embeds this table so
// suggestions arrive pre-shaped.
func ParamBounds() map[string]Bound {
	return map[string]Bound{
		"allocation_per_trade": {Min: 0.01, Max: 0.50, Default: 0.10},
		"min_trade_notional":   {Min: 1, Max: 1000, Default: 10},
		"min_risk_per_trade":   {Min: 0.0005, Max: 0.05, Default: 0.005},
		"max_risk_per_trade":   {Min: 0.001, Max: 0.20, Default: 0.02},
		"max_daily_drawdown":   {Min: 0.02, Max: 0.50, Default: 0.10},
		"max_open_positions":   {Min: 1, Max: 20, Default: 5},
		"max_pairs":            {Min: 1, Max: 12, Default: 8},
		"stop_loss_atr":        {Min: 0.5, Max: 10, Default: 2},
		"take_profit_atr":      {Min: 0.5, Max: 20, Default: 3},
		"trailing_stop_atr":    {Min: 0, Max: 10, Default: 0},
		"rsi_buy":              {Min: 10, Max: 50, Default: 35},
		"rsi_sell":             {Min: 50, Max: 90, Default: 70},
		"bollinger_period":     {Min: 5, Max: 100, Default: 20},
		"bollinger_std_dev":    {Min: 1, Max: 4, Default: 2},
		"stoch_k":              {Min: 3, Max: 50, Default: 14},
		"stoch_d":              {Min: 1, Max: 20, Default: 3},
		"macd_fast":            {Min: 2, Max: 50, Default: 12},
		"macd_slow":            {Min: 5, Max: 100, Default: 26},
		"macd_signal":          {Min: 2, Max: 50, Default: 9},
		"vol_low":              {Min: 0.0005, Max: 0.10, Default: 0.005},
		"vol_high":             {Min: 0.005, Max: 0.50, Default: 0.03},
		"trend_threshold":      {Min: 0.05, Max: 0.90, Default: 0.30},
		"confidence_floor":     {Min: 0.10, Max: 0.90, Default: 0.35},
	}
}
