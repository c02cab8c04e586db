package risk

// MaxDrawdown returns the deepest running-peak decline across the value
// series as a non-positive fraction: [100, 110, 95] → (95−110)/110 ≈ −0.136.
// Non-positive values are ignored.
func MaxDrawdown(values []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < worst {
				worst = dd
			}
		}
	}
	return worst
}

// DailyDrawdownBreached evaluates the intraday value series (today's
// snapshots followed by the live valuation) against the configured limit.
// It returns the drawdown fraction and whether the breaker tripped.
func DailyDrawdownBreached(values []float64, live, maxDailyDrawdown float64) (float64, bool) {
	series := make([]float64, 0, len(values)+1)
	series = append(series, values...)
	if live > 0 {
		series = append(series, live)
	}

	dd := MaxDrawdown(series)
	return dd, dd <= -maxDailyDrawdown
}
