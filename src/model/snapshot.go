package model

import "time"

// PortfolioSnapshot is the per-run record of total portfolio value in the
// quote currency. Breakdown holds the per-asset {amount, value} map as JSON
// text so the schema stays driver-agnostic. The repository keeps the table
// bounded by pruning the oldest rows past a configured cap.
type PortfolioSnapshot struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	TotalValue float64   `gorm:"not null" json:"total_value"`
	Breakdown  string    `gorm:"type:text" json:"breakdown,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
