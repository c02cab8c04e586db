package risk

import (
	"spotpilot/src/model"
	"spotpilot/src/strategy"
)

// Exit reasons recorded on closed trades.
const (
	ReasonStopLoss     = "stop loss"
	ReasonTakeProfit   = "take profit"
	ReasonTrailingStop = "trailing stop"
)

// ExitDecision is the outcome of evaluating one open trade against the
// current price. Mark is the updated high-water mark; MarkRaised reports
// whether it moved and needs persisting when the trade stays open.
type ExitDecision struct {
	Close      bool
	Reason     string
	Mark       float64
	MarkRaised bool
}

// EvaluateExit applies the exit rules to one open trade.
//
// Trailing (when a trailing multiplier is configured and the trade carries
// a stop-loss):
// - distance = (entry − SL) × (trailMult / slMult)
// - level = highWaterMark − distance
// - close when price < level
//
// Fixed (otherwise):
// - close at price ≤ stop-loss, or price ≥ take-profit
//
// The high-water mark only ever moves up.
func EvaluateExit(tr model.Trade, price float64, cfg strategy.Config) ExitDecision {
	mark := tr.Price
	if tr.HighWaterMark != nil && *tr.HighWaterMark > mark {
		mark = *tr.HighWaterMark
	}

	d := ExitDecision{Mark: mark}
	if price > mark {
		d.Mark = price
		d.MarkRaised = true
	}

	if cfg.TrailingStopATR > 0 && cfg.StopLossATR > 0 && tr.StopLossPrice != nil {
		distance := (tr.Price - *tr.StopLossPrice) * (cfg.TrailingStopATR / cfg.StopLossATR)
		level := d.Mark - distance
		if price < level {
			d.Close = true
			d.Reason = ReasonTrailingStop
		}
		return d
	}

	if tr.StopLossPrice != nil && price <= *tr.StopLossPrice {
		d.Close = true
		d.Reason = ReasonStopLoss
		return d
	}
	if tr.TakeProfitPrice != nil && price >= *tr.TakeProfitPrice {
		d.Close = true
		d.Reason = ReasonTakeProfit
	}
	return d
}
