package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"spotpilot/src/model"
	"spotpilot/src/repository"
	"spotpilot/src/security"
)

const defaultCandleLimit = 120

// ErrNoTickers means every ticker fetch in a batch failed.
var ErrNoTickers = errors.New("no tickers could be fetched")

var klinePeriods = map[string]goex.KlinePeriod{
	"15m": goex.KLINE_PERIOD_15MIN,
	"30m": goex.KLINE_PERIOD_30MIN,
	"1h":  goex.KLINE_PERIOD_1H,
	"4h":  goex.KLINE_PERIOD_4H,
	"1d":  goex.KLINE_PERIOD_1DAY,
}

// spotAPI is the slice of goex.API the exchange client consumes.
type spotAPI interface {
	GetTicker(pair goex.CurrencyPair) (*goex.Ticker, error)
	GetAccount() (*goex.Account, error)
	GetKlineRecords(pair goex.CurrencyPair, period goex.KlinePeriod, size int, optional ...goex.OptionalParameter) ([]goex.Kline, error)
	MarketBuy(amount, price string, pair goex.CurrencyPair) (*goex.Order, error)
	MarketSell(amount, price string, pair goex.CurrencyPair) (*goex.Order, error)
}

// ExchangeClient adapts the goex Binance spot contract to the bot's market
// types. A client-side rate limiter paces every outbound call.
type ExchangeClient struct {
	api     spotAPI
	limiter *rate.Limiter
}

func NewExchangeClient(creds Credentials) *ExchangeClient {
	cfg := GetConfig()

	endpoint := strings.TrimSpace(cfg.ExchangeEndpoint)
	if endpoint == "" {
		endpoint = binance.GLOBAL_API_BASE_URL
	}

	api := binance.NewWithConfig(&goex.APIConfig{
		HttpClient:   &http.Client{Timeout: cfg.ExchangeTimeout},
		Endpoint:     endpoint,
		ApiKey:       creds.APIKey,
		ApiSecretKey: creds.APISecret,
	})

	return &ExchangeClient{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(cfg.ExchangeRateLimit), cfg.ExchangeRateBurst),
	}
}

// Ticker fetches the 24h ticker for one pair.
func (c *ExchangeClient) Ticker(ctx context.Context, symbol string) (model.Ticker, error) {
	pair, err := currencyPair(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Ticker{}, err
	}

	t, err := c.api.GetTicker(pair)
	if err != nil {
		return model.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, err)
	}
	return convertTicker(symbol, t), nil
}

// Tickers fetches tickers for a symbol batch. Individual failures are
// logged and skipped; an error is returned only when nothing could be
// fetched at all.
func (c *ExchangeClient) Tickers(ctx context.Context, symbols []string) (map[string]model.Ticker, error) {
	out := make(map[string]model.Ticker, len(symbols))

	var lastErr error
	for _, symbol := range dedupeSymbols(symbols) {
		t, err := c.Ticker(ctx, symbol)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			lastErr = err
			logger.WithError(err).WithField("symbol", symbol).Warn("Skipping ticker")
			continue
		}
		out[t.Symbol] = t
	}

	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoTickers, lastErr)
	}
	return out, nil
}

// Candles fetches up to limit OHLCV bars for the interval, oldest first.
func (c *ExchangeClient) Candles(ctx context.Context, symbol, interval string, limit int) ([]model.Candle, error) {
	pair, err := currencyPair(symbol)
	if err != nil {
		return nil, err
	}
	period, ok := klinePeriods[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q", interval)
	}
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := c.api.GetKlineRecords(pair, period, limit)
	if err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", symbol, interval, err)
	}

	candles := make([]model.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, model.Candle{
			Timestamp: time.Unix(k.Timestamp, 0).UTC(),
			Open:      k.Open,
			High:      k.High,
			Low:       k.Low,
			Close:     k.Close,
			Volume:    k.Vol,
		})
	}
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})
	return candles, nil
}

// Balances returns all non-empty asset balances on the spot account.
func (c *ExchangeClient) Balances(ctx context.Context) ([]model.Balance, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	acc, err := c.api.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}

	balances := make([]model.Balance, 0, len(acc.SubAccounts))
	for cur, sub := range acc.SubAccounts {
		if sub.Amount == 0 && sub.ForzenAmount == 0 {
			continue
		}
		balances = append(balances, model.Balance{
			Asset:  strings.ToUpper(cur.Symbol),
			Free:   sub.Amount,
			Locked: sub.ForzenAmount,
		})
	}
	sort.Slice(balances, func(i, j int) bool { return balances[i].Asset < balances[j].Asset })
	return balances, nil
}

// MarketBuy buys baseAmount of the pair's base asset at market. The price
// is the caller's reference for sizing and fill fallbacks.
func (c *ExchangeClient) MarketBuy(ctx context.Context, symbol string, baseAmount, price float64) (*model.OrderFill, error) {
	return c.marketOrder(ctx, symbol, model.TradeSideBuy, baseAmount, price)
}

// MarketSell sells baseAmount of the pair's base asset at market.
func (c *ExchangeClient) MarketSell(ctx context.Context, symbol string, baseAmount, price float64) (*model.OrderFill, error) {
	return c.marketOrder(ctx, symbol, model.TradeSideSell, baseAmount, price)
}

func (c *ExchangeClient) marketOrder(ctx context.Context, symbol, side string, baseAmount, price float64) (*model.OrderFill, error) {
	if baseAmount <= 0 || price <= 0 {
		return nil, fmt.Errorf("invalid %s order for %s: amount %v price %v", side, symbol, baseAmount, price)
	}
	pair, err := currencyPair(symbol)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	place := c.api.MarketBuy
	if side == model.TradeSideSell {
		place = c.api.MarketSell
	}

	ord, err := place(formatAmount(baseAmount), formatAmount(price), pair)
	if err != nil {
		return nil, fmt.Errorf("market %s %s: %w", side, symbol, err)
	}

	fill := &model.OrderFill{
		OrderID:  ord.OrderID2,
		Symbol:   symbol,
		Side:     side,
		Amount:   ord.DealAmount,
		AvgPrice: ord.AvgPrice,
	}
	// Fall back to the request values when the reply omits fill details.
	if fill.Amount <= 0 {
		fill.Amount = baseAmount
	}
	if fill.AvgPrice <= 0 {
		fill.AvgPrice = price
	}
	fill.Cost = fill.Amount * fill.AvgPrice

	logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"side":      side,
		"amount":    fill.Amount,
		"avg_price": fill.AvgPrice,
		"order_id":  fill.OrderID,
	}).Info("Placed market order")
	return fill, nil
}

func convertTicker(symbol string, t *goex.Ticker) model.Ticker {
	at := time.Now().UTC()
	if t.Date > 0 {
		at = time.UnixMilli(int64(t.Date)).UTC()
	}
	return model.Ticker{
		Symbol: symbol,
		Last:   t.Last,
		Bid:    t.Buy,
		Ask:    t.Sell,
		High:   t.High,
		Low:    t.Low,
		// goex reports base-asset volume; selection ranks quote turnover.
		QuoteVolume: t.Vol * t.Last,
		At:          at,
	}
}

func currencyPair(symbol string) (goex.CurrencyPair, error) {
	base, quote, ok := strings.Cut(symbol, "/")
	if !ok || base == "" || quote == "" {
		return goex.CurrencyPair{}, fmt.Errorf("malformed symbol %q", symbol)
	}
	return goex.NewCurrencyPair(
		goex.Currency{Symbol: strings.ToUpper(base)},
		goex.Currency{Symbol: strings.ToUpper(quote)},
	), nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func dedupeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Credentials is the exchange API key pair. The encrypted settings entry
// wins over environment configuration so keys rotated through the CLI take
// effect without a redeploy.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

type credentialsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

var newCredentialsStore = func() credentialsStore { return repository.NewSettingsRepository() }

// ResolveCredentials returns the stored encrypted credentials when present
// and decryptable, otherwise the environment-configured pair.
func ResolveCredentials(ctx context.Context) Credentials {
	cfg := GetConfig()
	fromEnv := Credentials{APIKey: cfg.ExchangeAPIKey, APISecret: cfg.ExchangeAPISecret}

	sealed, err := newCredentialsStore().Get(ctx, model.SettingExchangeCredentials)
	if err != nil || sealed == "" {
		return fromEnv
	}

	plain, err := security.DecryptString(sealed)
	if err != nil {
		logger.WithError(err).Warn("Stored exchange credentials unusable, falling back to environment")
		return fromEnv
	}

	var stored Credentials
	if err := json.Unmarshal([]byte(plain), &stored); err != nil || stored.APIKey == "" {
		logger.Warn("Stored exchange credentials malformed, falling back to environment")
		return fromEnv
	}
	return stored
}

// StoreCredentials encrypts the pair and persists it in settings.
func StoreCredentials(ctx context.Context, creds Credentials) error {
	raw, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	sealed, err := security.EncryptString(string(raw))
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}
	return newCredentialsStore().Set(ctx, model.SettingExchangeCredentials, sealed)
}

// ClearCredentials removes the stored pair.
func ClearCredentials(ctx context.Context) error {
	return newCredentialsStore().Delete(ctx, model.SettingExchangeCredentials)
}
