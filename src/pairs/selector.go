package pairs

import (
	"sort"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/strategy"
)

// HardCap bounds the candidate universe regardless of configuration.
const HardCap = 12

// Selector filters the tradable universe down to a liquid, low-spread,
// volatility-bounded candidate list. Selection is deterministic for
// identical ticker input and never yields an empty universe.
type Selector struct {
	thresholds Config
}

func NewSelector() *Selector {
	return &Selector{thresholds: GetConfig()}
}

// WithThresholds overrides the liquidity thresholds. Useful for tests.
func (s *Selector) WithThresholds(thresholds Config) *Selector {
	return &Selector{thresholds: thresholds}
}

// Select returns the candidate symbol list: all currently held symbols
// first (order preserved), then the top filtered candidates by quote
// volume, capped at min(cfg.MaxPairs, HardCap). Held symbols are always
// included, even when they would fail the filters. An empty ticker map
// (total ticker failure upstream) falls back to the configured allowlist.
func (s *Selector) Select(tickers map[string]model.Ticker, held []string, cfg strategy.Config) []string {
	limit := cfg.MaxPairs
	if limit > HardCap {
		limit = HardCap
	}

	if len(tickers) == 0 {
		logger.Warn("No tickers available, falling back to the configured pair list")
		return mergeSymbols(held, cfg.Pairs, limit)
	}

	candidates := make([]model.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if !s.passes(t, cfg) {
			continue
		}
		candidates = append(candidates, t)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].QuoteVolume != candidates[j].QuoteVolume {
			return candidates[i].QuoteVolume > candidates[j].QuoteVolume
		}
		return candidates[i].Symbol < candidates[j].Symbol
	})

	ranked := make([]string, 0, len(candidates))
	for _, t := range candidates {
		ranked = append(ranked, t.Symbol)
	}

	return mergeSymbols(held, ranked, limit)
}

// passes applies the filter chain: quote volume, spread, daily range.
func (s *Selector) passes(t model.Ticker, cfg strategy.Config) bool {
	if t.QuoteVolume < s.thresholds.MinQuoteVolume {
		return false
	}
	if t.SpreadFraction() > s.thresholds.MaxSpread {
		return false
	}

	dayRange := t.DailyRangeFraction()
	if dayRange < cfg.VolLow || dayRange > 2*cfg.VolHigh {
		return false
	}
	return true
}

// mergeSymbols keeps every held symbol and fills the remaining slots from
// the ranked candidates, deduplicated, preserving both orderings.
func mergeSymbols(held, ranked []string, limit int) []string {
	seen := make(map[string]bool, limit)
	out := make([]string, 0, limit)

	for _, symbol := range held {
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}

	for _, symbol := range ranked {
		if len(out) >= limit {
			break
		}
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}

	return out
}
