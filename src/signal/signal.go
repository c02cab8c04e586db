package signal

import (
	"spotpilot/src/indicator"
	"spotpilot/src/strategy"
	"spotpilot/src/utils"
)

// Actions emitted by the scorer.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
	ActionHold = "HOLD"
)

// Regime labels, evaluated in priority order by Classify.
const (
	RegimeHighVol   = "high-vol"
	RegimeLowVol    = "low-vol"
	RegimeTrendUp   = "trend-up"
	RegimeTrendDown = "trend-down"
	RegimeRange     = "range"
	RegimeUnknown   = "unknown"
)

// Fixed scoring constants. These are part of the scoring model itself and
// deliberately not configurable.
const (
	// macdAmplification stretches the MACD histogram into the [-1,1] band.
	macdAmplification = 5.0
	// bandTerm is the one-off trend contribution from price sitting above or
	// below the middle Bollinger band on the low timeframe.
	bandTerm = 0.15
	// midRSIWeight down-weights the mid-timeframe RSI momentum term.
	midRSIWeight = 0.8

	stochBuyCeiling = 45.0
	stochSellFloor  = 55.0
)

// Snapshots carries the three per-timeframe indicator states for one pair.
type Snapshots struct {
	High indicator.Snapshot
	Mid  indicator.Snapshot
	Low  indicator.Snapshot
}

// Result is the scored outcome for one pair. Ephemeral: recomputed every
// run, consumed by the planner, never persisted.
type Result struct {
	Symbol          string  `json:"symbol"`
	Action          string  `json:"action"`
	Price           float64 `json:"price"`
	Confidence      float64 `json:"confidence"`
	Regime          string  `json:"regime"`
	TrendScore      float64 `json:"trend_score"`
	MomentumScore   float64 `json:"momentum_score"`
	VolatilityScore float64 `json:"volatility_score"`
	StopLoss        float64 `json:"stop_loss,omitempty"`
	TakeProfit      float64 `json:"take_profit,omitempty"`
}

// Hold is the data-insufficiency short circuit: action HOLD, confidence 0,
// regime unknown. Used when any timeframe fails the candle gate or its fetch.
func Hold(symbol string) Result {
	return Result{
		Symbol: symbol,
		Action: ActionHold,
		Regime: RegimeUnknown,
	}
}

// Score converts the three timeframe snapshots into one trading signal.
// Volatility and regime read the low timeframe ATR%; the result price is the
// low timeframe last close.
func Score(symbol string, snaps Snapshots, cfg strategy.Config) Result {
	trend := TrendScore(snaps)
	momentum := MomentumScore(snaps)
	volatility := VolatilityScore(snaps.Low.ATRPct, cfg.VolLow, cfg.VolHigh)
	confidence := Confidence(trend, momentum, volatility)

	price := snaps.Low.LastClose

	res := Result{
		Symbol:          symbol,
		Action:          Decide(snaps.Low.RSI, snaps.Low.StochK, trend, confidence, cfg),
		Price:           price,
		Confidence:      confidence,
		Regime:          Classify(snaps.Low.ATRPct, trend, cfg),
		TrendScore:      trend,
		MomentumScore:   momentum,
		VolatilityScore: volatility,
	}

	if res.Action == ActionBuy {
		atr := price * snaps.Low.ATRPct
		res.StopLoss = price - atr*cfg.StopLossATR
		res.TakeProfit = price + atr*cfg.TakeProfitATR
	}

	return res
}

// TrendScore is the unweighted mean of the three amplified MACD histogram
// terms plus the low-timeframe Bollinger band position term.
func TrendScore(snaps Snapshots) float64 {
	band := -bandTerm
	if snaps.Low.LastClose >= snaps.Low.BollMiddle {
		band = bandTerm
	}

	sum := macdTerm(snaps.High) + macdTerm(snaps.Mid) + macdTerm(snaps.Low) + band
	return sum / 4
}

func macdTerm(s indicator.Snapshot) float64 {
	return utils.Clamp(s.MACDHist*macdAmplification, -1, 1)
}

// MomentumScore is the mean of the normalized low RSI, the down-weighted
// normalized mid RSI and the normalized low stochastic.
func MomentumScore(snaps Snapshots) float64 {
	sum := NormalizeRSI(snaps.Low.RSI) +
		midRSIWeight*NormalizeRSI(snaps.Mid.RSI) +
		NormalizeStochastic(snaps.Low.StochK, snaps.Low.StochD)
	return sum / 3
}

// NormalizeRSI maps the [0,100] oscillator onto [-1,1] around its midpoint.
func NormalizeRSI(rsi float64) float64 {
	return utils.Clamp((rsi-50)/50, -1, 1)
}

// NormalizeStochastic applies the RSI mapping to the %K/%D average.
func NormalizeStochastic(k, d float64) float64 {
	return utils.Clamp(((k+d)/2-50)/50, -1, 1)
}

// VolatilityScore is 0 inside the [volLow, volHigh] band, negative below it
// and positive (unbounded) above it.
func VolatilityScore(atrPct, volLow, volHigh float64) float64 {
	switch {
	case volLow > 0 && atrPct < volLow:
		return (atrPct - volLow) / volLow
	case volHigh > 0 && atrPct > volHigh:
		return (atrPct - volHigh) / volHigh
	default:
		return 0
	}
}

// Confidence blends trend, momentum and a volatility penalty into [0,1].
func Confidence(trend, momentum, volatility float64) float64 {
	penalty := 1 - abs(volatility)
	if penalty < 0 {
		penalty = 0
	}
	return utils.Clamp01(0.4*trend + 0.4*momentum + 0.2*penalty)
}

// Classify labels the market regime. Priority order matters: volatility
// extremes outrank trend direction, which outranks range.
func Classify(atrPct, trend float64, cfg strategy.Config) string {
	switch {
	case atrPct >= cfg.VolHigh:
		return RegimeHighVol
	case atrPct <= 0.8*cfg.VolLow:
		return RegimeLowVol
	case trend >= cfg.TrendThreshold:
		return RegimeTrendUp
	case trend <= -cfg.TrendThreshold:
		return RegimeTrendDown
	default:
		return RegimeRange
	}
}

// Decide applies the entry/exit rules over the low-timeframe oscillators,
// the blended trend score and the confidence value.
func Decide(lowRSI, lowStochK, trend, confidence float64, cfg strategy.Config) string {
	if confidence <= cfg.ConfidenceFloor {
		return ActionHold
	}
	if lowRSI < cfg.RSIBuy && lowStochK < stochBuyCeiling && trend > cfg.TrendThreshold {
		return ActionBuy
	}
	if lowRSI > cfg.RSISell && lowStochK > stochSellFloor && trend < -cfg.TrendThreshold {
		return ActionSell
	}
	return ActionHold
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
