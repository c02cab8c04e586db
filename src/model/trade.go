package model

import "time"

const (
	TradeSideBuy  = "buy"
	TradeSideSell = "sell"

	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Strategy tags recorded on trades so the origin of every order is auditable.
const (
	StrategyMultiTimeframe = "MultiTimeframe"
	StrategyRebalance      = "Rebalance"
	StrategyRiskManager    = "RiskManager"
	StrategySafetyMode     = "SafetyMode"
)

// Trade is the persistent record of one executed buy or sell.
// Rows are never deleted: a buy opens a trade, a matching sell appends a
// new closed row and flips the originating open row(s) to closed.
type Trade struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	RunID  string `gorm:"size:40;index" json:"run_id,omitempty"`
	Symbol string `gorm:"size:20;not null;index" json:"symbol"`
	Side   string `gorm:"size:10;not null" json:"side"`

	// Amount is in base currency, Price in quote per base, Cost in quote.
	Amount float64 `json:"amount"`
	Price  float64 `json:"price"`
	Cost   float64 `json:"cost"`

	Strategy string `gorm:"size:40;index" json:"strategy"`
	Status   string `gorm:"size:10;not null;default:open;index" json:"status"`

	// OrderID is the exchange order id when the exchange returned one.
	OrderID string `gorm:"size:64" json:"order_id,omitempty"`

	StopLossPrice   *float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice *float64 `json:"take_profit_price,omitempty"`

	// HighWaterMark is the highest price seen since entry, maintained by
	// the risk manager for trailing-stop evaluation.
	HighWaterMark *float64 `json:"high_water_mark,omitempty"`

	// Reason annotates risk exits ("stop loss", "take profit", "trailing stop").
	Reason string `gorm:"size:100" json:"reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Trade) TableName() string {
	return "trades"
}
