package engine

import (
	"time"

	"spotpilot/src/rebalance"
	"spotpilot/src/risk"
	"spotpilot/src/signal"
	"spotpilot/src/tuner"
)

// Halt reasons. A halted run is still a successful run: the gate worked.
const (
	HaltDisabled   = "disabled"
	HaltDrawdown   = "drawdown"
	HaltMacroEvent = "macro-event"
)

// PairOutcome is the per-pair analysis result. A failed pair degrades to a
// HOLD signal with the error attached; it never aborts the run.
type PairOutcome struct {
	Symbol string        `json:"symbol"`
	Signal signal.Result `json:"signal"`
	Err    string        `json:"error,omitempty"`
}

// RunReport is the structured result of one trading run, returned by the
// trigger endpoint and the CLI and logged to the bot log.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Success    bool      `json:"success"`
	Halt       string    `json:"halt,omitempty"`
	TotalValue float64   `json:"total_value,omitempty"`
	Drawdown   float64   `json:"drawdown,omitempty"`

	Pairs     []string             `json:"pairs,omitempty"`
	PerPair   []PairOutcome        `json:"per_pair,omitempty"`
	RiskExits []risk.ExitResult    `json:"risk_exits,omitempty"`
	Plan      []rebalance.PlanStep `json:"plan,omitempty"`
	Tune      *tuner.Outcome       `json:"tune,omitempty"`

	Err string `json:"error,omitempty"`
}
