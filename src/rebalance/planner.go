package rebalance

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/signal"
	"spotpilot/src/strategy"
)

// Plan step actions.
const (
	StepBuy  = "buy"
	StepSell = "sell"
	StepHold = "hold"
	StepSkip = "skip"
)

// targetCoverage is the holding fraction of the target size above which a
// BUY is treated as already filled.
const targetCoverage = 0.9

// PlanStep records one planning decision, executed or not, so every
// per-action outcome stays observable in the run report.
type PlanStep struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"`
	Quote    float64 `json:"quote_amount,omitempty"`
	Note     string  `json:"note,omitempty"`
	Executed bool    `json:"executed"`
	Err      string  `json:"error,omitempty"`
}

type orderExecutor interface {
	ExecuteBuy(ctx context.Context, runID, symbol string, quoteAmount, price float64, sig signal.Result) (*model.OrderFill, error)
	ExecuteSell(ctx context.Context, runID, symbol string, baseAmount, price float64, tag, reason string) (*model.OrderFill, error)
}

// Planner turns per-pair signals and the live portfolio into an ordered
// sequence of sells and buys. Execution is strictly sequential: the running
// quote balance is mutated in place so later buys see capital freed by
// earlier sells. This fold must not be parallelized.
type Planner struct {
	exec orderExecutor
}

func NewPlanner(exec orderExecutor) *Planner {
	return &Planner{exec: exec}
}

// Execute runs the two-pass rebalance. Pass 1 classifies every analyzed
// pair (SKIP below the confidence floor). Pass 2 liquidates SELL positions
// first, crediting proceeds to the running balance, then processes BUY
// signals in descending confidence order, funding shortfalls by liquidating
// the weakest non-target holdings.
func (p *Planner) Execute(ctx context.Context, runID string, signals map[string]signal.Result, pf model.Portfolio, cfg strategy.Config) []PlanStep {
	steps := make([]PlanStep, 0, len(signals))

	var buys, sells []signal.Result
	for _, symbol := range sortedKeys(signals) {
		sig := signals[symbol]
		switch {
		case sig.Confidence < cfg.ConfidenceFloor:
			steps = append(steps, PlanStep{Symbol: symbol, Action: StepSkip, Note: "below confidence floor"})
		case sig.Action == signal.ActionBuy:
			buys = append(buys, sig)
		case sig.Action == signal.ActionSell:
			sells = append(sells, sig)
		default:
			steps = append(steps, PlanStep{Symbol: symbol, Action: StepHold})
		}
	}

	// Local copy: the fold below consumes holdings as they are sold.
	held := make(map[string]model.Holding, len(pf.Holdings))
	for asset, h := range pf.Holdings {
		held[asset] = h
	}

	available := decimal.NewFromFloat(pf.Cash)
	minNotional := decimal.NewFromFloat(cfg.MinTradeNotional)

	// Phase A: sells first, proceeds fund the buys of the same run.
	for _, sig := range sells {
		step, proceeds := p.sellPosition(ctx, runID, sig, held, minNotional)
		steps = append(steps, step)
		available = available.Add(proceeds)
	}

	// Phase B: buys in descending confidence order, symbol as tie-break.
	sort.SliceStable(buys, func(i, j int) bool {
		if buys[i].Confidence != buys[j].Confidence {
			return buys[i].Confidence > buys[j].Confidence
		}
		return buys[i].Symbol < buys[j].Symbol
	})

	buyTargets := make(map[string]bool, len(buys))
	for _, sig := range buys {
		buyTargets[baseAsset(sig.Symbol)] = true
	}

	target := decimal.NewFromFloat(pf.TotalValue).Mul(decimal.NewFromFloat(cfg.AllocationPerTrade))

	for _, sig := range buys {
		base := baseAsset(sig.Symbol)
		current := decimal.NewFromFloat(held[base].Value)

		if current.GreaterThanOrEqual(target.Mul(decimal.NewFromFloat(targetCoverage))) {
			steps = append(steps, PlanStep{Symbol: sig.Symbol, Action: StepHold, Note: "already at target"})
			continue
		}

		needed := target.Sub(current)
		if needed.LessThan(minNotional) {
			steps = append(steps, PlanStep{Symbol: sig.Symbol, Action: StepSkip, Note: "needed below minimum notional"})
			continue
		}

		if _, holdsBase := held[base]; !holdsBase && len(held) >= cfg.MaxOpenPositions {
			steps = append(steps, PlanStep{Symbol: sig.Symbol, Action: StepSkip, Note: "max open positions reached"})
			continue
		}

		if available.LessThan(needed) {
			funding := p.liquidateWeak(ctx, runID, sig.Symbol, buyTargets, needed, &available, held, signals, pf.Quote)
			steps = append(steps, funding...)
		}

		spend := decimal.Min(available, needed)
		if spend.LessThan(minNotional) {
			steps = append(steps, PlanStep{Symbol: sig.Symbol, Action: StepSkip, Note: "insufficient balance"})
			continue
		}

		quoteAmount, _ := spend.Float64()
		fill, err := p.exec.ExecuteBuy(ctx, runID, sig.Symbol, quoteAmount, sig.Price, sig)
		if fill == nil {
			logger.WithError(err).WithField("symbol", sig.Symbol).Error("Buy failed")
			steps = append(steps, PlanStep{Symbol: sig.Symbol, Action: StepBuy, Quote: quoteAmount, Err: errString(err)})
			continue
		}

		available = available.Sub(decimal.NewFromFloat(fill.Cost))
		held[base] = model.Holding{
			Asset:  base,
			Amount: held[base].Amount + fill.Amount,
			Price:  fill.AvgPrice,
			Value:  held[base].Value + fill.Cost,
		}

		step := PlanStep{Symbol: sig.Symbol, Action: StepBuy, Quote: fill.Cost, Executed: true}
		if err != nil {
			// The order filled but bookkeeping failed; keep the fill visible.
			step.Err = err.Error()
		}
		steps = append(steps, step)
	}

	return steps
}

// sellPosition liquidates the full holding behind a SELL signal when its
// value exceeds the minimum trade notional. Returns the proceeds credited
// to the running balance.
func (p *Planner) sellPosition(ctx context.Context, runID string, sig signal.Result, held map[string]model.Holding, minNotional decimal.Decimal) (PlanStep, decimal.Decimal) {
	base := baseAsset(sig.Symbol)

	h, ok := held[base]
	if !ok || h.Amount <= 0 {
		return PlanStep{Symbol: sig.Symbol, Action: StepSkip, Note: "no position to sell"}, decimal.Zero
	}
	if !decimal.NewFromFloat(h.Value).GreaterThan(minNotional) {
		return PlanStep{Symbol: sig.Symbol, Action: StepSkip, Note: "position below minimum notional"}, decimal.Zero
	}

	fill, err := p.exec.ExecuteSell(ctx, runID, sig.Symbol, h.Amount, h.Price, model.StrategyMultiTimeframe, "sell signal")
	if fill == nil {
		logger.WithError(err).WithField("symbol", sig.Symbol).Error("Sell failed")
		return PlanStep{Symbol: sig.Symbol, Action: StepSell, Err: errString(err)}, decimal.Zero
	}

	delete(held, base)

	step := PlanStep{Symbol: sig.Symbol, Action: StepSell, Quote: fill.Cost, Executed: true, Note: "sell signal"}
	if err != nil {
		step.Err = err.Error()
	}
	return step, decimal.NewFromFloat(fill.Cost)
}

// liquidateWeak frees capital for a buy by selling holdings that are not
// themselves buy targets, weakest signal confidence first (unanalyzed
// assets count as zero), until the gap is closed or candidates run out.
func (p *Planner) liquidateWeak(ctx context.Context, runID, buying string, buyTargets map[string]bool, needed decimal.Decimal, available *decimal.Decimal, held map[string]model.Holding, signals map[string]signal.Result, quote string) []PlanStep {
	buyingBase := baseAsset(buying)

	type weak struct {
		asset      string
		confidence float64
	}

	var candidates []weak
	for asset := range held {
		if asset == buyingBase || asset == quote || buyTargets[asset] {
			continue
		}
		confidence := 0.0
		if sig, ok := signals[asset+"/"+quote]; ok {
			confidence = sig.Confidence
		}
		candidates = append(candidates, weak{asset: asset, confidence: confidence})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence < candidates[j].confidence
		}
		return candidates[i].asset < candidates[j].asset
	})

	var steps []PlanStep
	for _, c := range candidates {
		if available.GreaterThanOrEqual(needed) {
			break
		}

		h := held[c.asset]
		symbol := c.asset + "/" + quote

		fill, err := p.exec.ExecuteSell(ctx, runID, symbol, h.Amount, h.Price, model.StrategyRebalance, "liquidated to fund "+buying)
		if fill == nil {
			logger.WithError(err).WithField("symbol", symbol).Error("Funding liquidation failed")
			steps = append(steps, PlanStep{Symbol: symbol, Action: StepSell, Err: errString(err)})
			continue
		}

		*available = available.Add(decimal.NewFromFloat(fill.Cost))
		delete(held, c.asset)

		step := PlanStep{Symbol: symbol, Action: StepSell, Quote: fill.Cost, Executed: true, Note: "liquidated to fund " + buying}
		if err != nil {
			step.Err = err.Error()
		}
		steps = append(steps, step)
	}

	return steps
}

func baseAsset(symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	return base
}

func sortedKeys(signals map[string]signal.Result) []string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
