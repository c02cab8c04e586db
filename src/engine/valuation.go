package engine

import (
	"strings"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/risk"
)

// dustFloor is the quote-currency value below which a balance is treated
// as residue rather than a position.
const dustFloor = 1.0

// BuildPortfolio values the account balances against the ticker snapshot.
// Cash is the free quote balance; locked quote still counts toward the
// total. Assets without a usable price are excluded with a warning, dust
// balances silently.
func BuildPortfolio(balances []model.Balance, tickers map[string]model.Ticker, quote string) model.Portfolio {
	quote = strings.ToUpper(quote)
	pf := model.Portfolio{Quote: quote, Holdings: map[string]model.Holding{}}

	total := decimal.Zero
	for _, b := range balances {
		asset := strings.ToUpper(b.Asset)
		if asset == quote {
			pf.Cash = b.Free
			total = total.Add(decimal.NewFromFloat(b.Total()))
			continue
		}

		t, ok := tickers[asset+"/"+quote]
		if !ok || t.Last <= 0 {
			logger.WithField("asset", asset).Warn("No price for balance, excluded from valuation")
			continue
		}

		value := decimal.NewFromFloat(b.Total()).Mul(decimal.NewFromFloat(t.Last))
		if value.LessThan(decimal.NewFromFloat(dustFloor)) {
			continue
		}

		v, _ := value.Float64()
		pf.Holdings[asset] = model.Holding{Asset: asset, Amount: b.Total(), Price: t.Last, Value: v}
		total = total.Add(value)
	}

	pf.TotalValue, _ = total.Round(8).Float64()
	return pf
}

// applyExits folds executed risk exits back into the valuation so the
// planner sees the post-exit cash and positions. The input portfolio is
// not mutated.
func applyExits(pf model.Portfolio, exits []risk.ExitResult) model.Portfolio {
	holdings := make(map[string]model.Holding, len(pf.Holdings))
	for k, v := range pf.Holdings {
		holdings[k] = v
	}
	pf.Holdings = holdings

	cash := decimal.NewFromFloat(pf.Cash)
	total := decimal.NewFromFloat(pf.TotalValue)

	for _, ex := range exits {
		if !ex.Closed {
			continue
		}

		proceeds := decimal.NewFromFloat(ex.Proceeds)
		cash = cash.Add(proceeds)
		total = total.Add(proceeds)

		base, _, ok := strings.Cut(ex.Symbol, "/")
		if !ok {
			continue
		}
		h, held := holdings[base]
		if !held {
			// The position never made it into the valuation (no price at
			// build time), so its proceeds are new value.
			continue
		}

		sold := decimal.NewFromFloat(ex.Amount)
		amount := decimal.NewFromFloat(h.Amount)
		if sold.GreaterThan(amount) {
			sold = amount
		}
		price := decimal.NewFromFloat(h.Price)

		kept := amount.Sub(sold)
		keptValue := kept.Mul(price)
		if keptValue.LessThan(decimal.NewFromFloat(dustFloor)) {
			total = total.Sub(decimal.NewFromFloat(h.Value))
			delete(holdings, base)
			continue
		}

		total = total.Sub(sold.Mul(price))
		ha, _ := kept.Float64()
		hv, _ := keptValue.Float64()
		holdings[base] = model.Holding{Asset: base, Amount: ha, Price: h.Price, Value: hv}
	}

	pf.Cash, _ = cash.Float64()
	pf.TotalValue, _ = total.Round(8).Float64()
	return pf
}

func lastPrices(tickers map[string]model.Ticker) map[string]float64 {
	prices := make(map[string]float64, len(tickers))
	for symbol, t := range tickers {
		if t.Last > 0 {
			prices[symbol] = t.Last
		}
	}
	return prices
}
