package model

import (
	"sort"
	"time"
)

// Ticker is the exchange 24h ticker reduced to the fields the selector and
// planner consume. QuoteVolume falls back to zero when the exchange omits
// it, which excludes the pair from selection rather than failing the run.
type Ticker struct {
	Symbol      string    `json:"symbol"`
	Last        float64   `json:"last"`
	Bid         float64   `json:"bid"`
	Ask         float64   `json:"ask"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	QuoteVolume float64   `json:"quote_volume"`
	At          time.Time `json:"at"`
}

// SpreadFraction returns (ask-bid)/ask, or 1 when the book side is missing
// so that pairs without a usable quote never pass the spread filter.
func (t Ticker) SpreadFraction() float64 {
	if t.Ask <= 0 || t.Bid <= 0 || t.Bid > t.Ask {
		return 1
	}
	return (t.Ask - t.Bid) / t.Ask
}

// DailyRangeFraction returns (high-low)/low for the last 24h, or 0 when the
// range is unusable.
func (t Ticker) DailyRangeFraction() float64 {
	if t.Low <= 0 || t.High < t.Low {
		return 0
	}
	return (t.High - t.Low) / t.Low
}

// Candle is one OHLCV bar.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Balance is one asset balance on the exchange account.
type Balance struct {
	Asset  string  `json:"asset"`
	Free   float64 `json:"free"`
	Locked float64 `json:"locked"`
}

// Total returns free plus locked.
func (b Balance) Total() float64 {
	return b.Free + b.Locked
}

// OrderFill is the normalized result of a market order.
type OrderFill struct {
	OrderID  string  `json:"order_id"`
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
	AvgPrice float64 `json:"avg_price"`
	Cost     float64 `json:"cost"`
}

// Holding is one non-quote asset position valued in the quote currency.
type Holding struct {
	Asset  string  `json:"asset"`
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
}

// Portfolio is the live valuation the planner and risk manager operate on.
// Cash is the freely available quote balance; Holdings maps base asset to
// its current position.
type Portfolio struct {
	Quote      string             `json:"quote"`
	Cash       float64            `json:"cash"`
	Holdings   map[string]Holding `json:"holdings"`
	TotalValue float64            `json:"total_value"`
}

// HoldingSymbols lists the pair symbols of all holdings against the quote
// currency, in deterministic insertion-independent order (sorted by asset).
func (p Portfolio) HoldingSymbols() []string {
	symbols := make([]string, 0, len(p.Holdings))
	for asset := range p.Holdings {
		symbols = append(symbols, asset+"/"+p.Quote)
	}
	sort.Strings(symbols)
	return symbols
}
