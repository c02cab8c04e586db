package trader

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
	"spotpilot/src/signal"
)

// marketTrader is the exchange slice the trader consumes.
type marketTrader interface {
	MarketBuy(ctx context.Context, symbol string, baseAmount, price float64) (*model.OrderFill, error)
	MarketSell(ctx context.Context, symbol string, baseAmount, price float64) (*model.OrderFill, error)
}

type tradeStore interface {
	Create(ctx context.Context, trade *model.Trade) error
	CloseTrade(ctx context.Context, id uint, reason string) error
	CloseOpenForSymbol(ctx context.Context, symbol, reason string) (int64, error)
}

var newTradeStore = func() tradeStore { return repository.NewTradeRepository() }

// Trader places market orders and keeps the trade ledger in sync: a buy
// opens a trade, a sell appends a closed record and flips the open buys
// for that symbol. When the order filled but the ledger write failed, the
// fill is still returned alongside the error so callers can account for
// the moved funds.
type Trader struct {
	exchange marketTrader
	trades   tradeStore
}

func New(exchange marketTrader) *Trader {
	return &Trader{exchange: exchange, trades: newTradeStore()}
}

// ExecuteBuy spends quoteAmount on the pair at the reference price and
// records the resulting open trade. Stop-loss and take-profit levels come
// from the signal when it carries them.
func (t *Trader) ExecuteBuy(ctx context.Context, runID, symbol string, quoteAmount, price float64, sig signal.Result) (*model.OrderFill, error) {
	if quoteAmount <= 0 || price <= 0 {
		return nil, fmt.Errorf("invalid buy for %s: quote %v price %v", symbol, quoteAmount, price)
	}

	fill, err := t.exchange.MarketBuy(ctx, symbol, quoteAmount/price, price)
	if err != nil {
		return nil, err
	}

	trade := &model.Trade{
		RunID:    runID,
		Symbol:   symbol,
		Side:     model.TradeSideBuy,
		Amount:   fill.Amount,
		Price:    fill.AvgPrice,
		Cost:     fill.Cost,
		Strategy: model.StrategyMultiTimeframe,
		Status:   model.TradeStatusOpen,
		OrderID:  fill.OrderID,
	}
	if sig.StopLoss > 0 {
		sl := sig.StopLoss
		trade.StopLossPrice = &sl
	}
	if sig.TakeProfit > 0 {
		tp := sig.TakeProfit
		trade.TakeProfitPrice = &tp
	}

	if err := t.trades.Create(ctx, trade); err != nil {
		logger.WithError(err).WithField("symbol", symbol).Error("Buy filled but trade record failed")
		return fill, fmt.Errorf("record buy %s: %w", symbol, err)
	}

	logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"amount":    fill.Amount,
		"avg_price": fill.AvgPrice,
		"cost":      fill.Cost,
		"stop_loss": sig.StopLoss,
	}).Info("Opened position")
	return fill, nil
}

// ExecuteSell sells baseAmount of the pair at market, appends a closed
// sell record tagged with the strategy tag and flips any open buys for
// the symbol.
func (t *Trader) ExecuteSell(ctx context.Context, runID, symbol string, baseAmount, price float64, tag, reason string) (*model.OrderFill, error) {
	fill, err := t.exchange.MarketSell(ctx, symbol, baseAmount, price)
	if err != nil {
		return nil, err
	}

	recordErr := t.recordSell(ctx, runID, symbol, tag, reason, fill)

	flipped, err := t.trades.CloseOpenForSymbol(ctx, symbol, reason)
	if err != nil && recordErr == nil {
		recordErr = fmt.Errorf("flip open trades %s: %w", symbol, err)
	}

	logger.WithFields(map[string]interface{}{
		"symbol":   symbol,
		"amount":   fill.Amount,
		"proceeds": fill.Cost,
		"reason":   reason,
		"flipped":  flipped,
	}).Info("Sold position")
	return fill, recordErr
}

// ClosePosition exits one specific open trade at the given price and
// closes that trade row rather than every open row for the symbol.
func (t *Trader) ClosePosition(ctx context.Context, runID string, tr model.Trade, price float64, tag, reason string) (*model.OrderFill, error) {
	if tr.Amount <= 0 {
		return nil, fmt.Errorf("trade %d has no amount to close", tr.ID)
	}

	fill, err := t.exchange.MarketSell(ctx, tr.Symbol, tr.Amount, price)
	if err != nil {
		return nil, err
	}

	recordErr := t.recordSell(ctx, runID, tr.Symbol, tag, reason, fill)

	if err := t.trades.CloseTrade(ctx, tr.ID, reason); err != nil && recordErr == nil {
		recordErr = fmt.Errorf("close trade %d: %w", tr.ID, err)
	}

	logger.WithFields(map[string]interface{}{
		"symbol":   tr.Symbol,
		"trade_id": tr.ID,
		"entry":    tr.Price,
		"exit":     fill.AvgPrice,
		"reason":   reason,
	}).Info("Closed position")
	return fill, recordErr
}

func (t *Trader) recordSell(ctx context.Context, runID, symbol, tag, reason string, fill *model.OrderFill) error {
	trade := &model.Trade{
		RunID:    runID,
		Symbol:   symbol,
		Side:     model.TradeSideSell,
		Amount:   fill.Amount,
		Price:    fill.AvgPrice,
		Cost:     fill.Cost,
		Strategy: tag,
		Status:   model.TradeStatusClosed,
		OrderID:  fill.OrderID,
		Reason:   reason,
	}
	if err := t.trades.Create(ctx, trade); err != nil {
		logger.WithError(err).WithField("symbol", symbol).Error("Sell filled but trade record failed")
		return fmt.Errorf("record sell %s: %w", symbol, err)
	}
	return nil
}
