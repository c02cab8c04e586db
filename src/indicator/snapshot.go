package indicator

import (
	"errors"
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"

	"spotpilot/src/model"
	"spotpilot/src/strategy"
)

// MinCandles is the hard data-sufficiency gate: below this the snapshot is
// refused and the pair scores HOLD upstream.
const MinCandles = 50

// RSI and ATR periods are fixed; only the indicator parameters listed in the
// strategy config are tunable.
const (
	rsiPeriod = 14
	atrPeriod = 14

	// slowKPeriod smooths fast %K into slow %K before the %D average.
	slowKPeriod = 3
)

// ErrInsufficientData marks a series too short to score.
var ErrInsufficientData = errors.New("insufficient candle history")

// Params holds the tunable indicator periods taken from the strategy config.
type Params struct {
	BollingerPeriod int
	BollingerStdDev float64
	StochK          int
	StochD          int
	MACDFast        int
	MACDSlow        int
	MACDSignal      int
}

// ParamsFromConfig copies the indicator fields out of a clamped config.
func ParamsFromConfig(cfg strategy.Config) Params {
	return Params{
		BollingerPeriod: cfg.BollingerPeriod,
		BollingerStdDev: cfg.BollingerStdDev,
		StochK:          cfg.StochK,
		StochD:          cfg.StochD,
		MACDFast:        cfg.MACDFast,
		MACDSlow:        cfg.MACDSlow,
		MACDSignal:      cfg.MACDSignal,
	}
}

// Snapshot is the last-value indicator state for one (pair, timeframe).
// It is recomputed every run and never persisted.
type Snapshot struct {
	RSI        float64 `json:"rsi"`
	MACDHist   float64 `json:"macd_hist"`
	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	BollUpper  float64 `json:"boll_upper"`
	BollMiddle float64 `json:"boll_middle"`
	BollLower  float64 `json:"boll_lower"`
	ATRPct     float64 `json:"atr_pct"`
	LastClose  float64 `json:"last_close"`
	Candles    int     `json:"candles"`
}

// Compute derives the last-value snapshot from an OHLC series. Candles are
// sorted oldest-first before computation; series shorter than MinCandles are
// rejected with ErrInsufficientData.
func Compute(candles []model.Candle, p Params) (Snapshot, error) {
	if len(candles) < MinCandles {
		return Snapshot{}, fmt.Errorf("%w: got %d candles, need %d", ErrInsufficientData, len(candles), MinCandles)
	}

	series := append([]model.Candle(nil), candles...)
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})

	highs := make([]float64, len(series))
	lows := make([]float64, len(series))
	closes := make([]float64, len(series))
	for i, c := range series {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	rsi := talib.Rsi(closes, rsiPeriod)
	_, _, macdHist := talib.Macd(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	upper, middle, lower := talib.BBands(closes, p.BollingerPeriod, p.BollingerStdDev, p.BollingerStdDev, talib.SMA)
	stochK, stochD := talib.Stoch(highs, lows, closes, p.StochK, slowKPeriod, talib.SMA, p.StochD, talib.SMA)
	atr := talib.Atr(highs, lows, closes, atrPeriod)

	lastClose := closes[len(closes)-1]

	snap := Snapshot{
		RSI:        lastValue(rsi),
		MACDHist:   lastValue(macdHist),
		StochK:     lastValue(stochK),
		StochD:     lastValue(stochD),
		BollUpper:  lastValue(upper),
		BollMiddle: lastValue(middle),
		BollLower:  lastValue(lower),
		LastClose:  lastClose,
		Candles:    len(series),
	}
	if lastClose > 0 {
		snap.ATRPct = lastValue(atr) / lastClose
	}

	return snap, nil
}

func lastValue(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}
