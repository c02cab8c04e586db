package engine

import (
	"context"
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/indicator"
	"spotpilot/src/signal"
	"spotpilot/src/strategy"
)

// analyze scores every candidate pair, at most AnalysisWorkers at a time.
// Each worker owns its pair's fetches and snapshot; only the result map is
// shared, behind the mutex. Output order follows the input order.
func (e *Engine) analyze(ctx context.Context, symbols []string, cfg strategy.Config) []PairOutcome {
	workers := e.cfg.AnalysisWorkers
	if workers < 1 {
		workers = 1
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[string]PairOutcome, len(symbols))
		sem     = make(chan struct{}, workers)
	)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := e.analyzeOne(ctx, symbol, cfg)

			mu.Lock()
			results[symbol] = outcome
			mu.Unlock()
		}(symbol)
	}
	wg.Wait()

	out := make([]PairOutcome, 0, len(symbols))
	for _, symbol := range symbols {
		out = append(out, results[symbol])
	}
	return out
}

func (e *Engine) analyzeOne(ctx context.Context, symbol string, cfg strategy.Config) PairOutcome {
	snaps, err := e.timeframeSnapshots(ctx, symbol, cfg)
	if err != nil {
		logger.WithError(err).WithField("symbol", symbol).Warn("Analysis degraded to HOLD")
		return PairOutcome{Symbol: symbol, Signal: signal.Hold(symbol), Err: err.Error()}
	}
	return PairOutcome{Symbol: symbol, Signal: signal.Score(symbol, snaps, cfg)}
}

// timeframeSnapshots fetches and computes the three indicator snapshots a
// signal needs. Any fetch failure or short series fails the whole triple:
// the caller degrades the pair to HOLD.
func (e *Engine) timeframeSnapshots(ctx context.Context, symbol string, cfg strategy.Config) (signal.Snapshots, error) {
	params := indicator.ParamsFromConfig(cfg)

	var snaps signal.Snapshots
	frames := []struct {
		interval string
		dst      *indicator.Snapshot
	}{
		{cfg.Timeframes.High, &snaps.High},
		{cfg.Timeframes.Mid, &snaps.Mid},
		{cfg.Timeframes.Low, &snaps.Low},
	}

	for _, frame := range frames {
		candles, err := e.market.Candles(ctx, symbol, frame.interval, cfg.Timeframes.Lookback)
		if err != nil {
			return signal.Snapshots{}, fmt.Errorf("candles %s %s: %w", symbol, frame.interval, err)
		}
		snap, err := indicator.Compute(candles, params)
		if err != nil {
			return signal.Snapshots{}, fmt.Errorf("%s %s: %w", symbol, frame.interval, err)
		}
		*frame.dst = snap
	}
	return snaps, nil
}
