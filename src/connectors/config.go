package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Exchange endpoint override, empty means the exchange default.
	ExchangeEndpoint  string        `envconfig:"EXCHANGE_ENDPOINT" default:""`
	ExchangeAPIKey    string        `envconfig:"EXCHANGE_API_KEY" default:""`
	ExchangeAPISecret string        `envconfig:"EXCHANGE_API_SECRET" default:""`
	ExchangeTimeout   time.Duration `envconfig:"EXCHANGE_TIMEOUT" default:"15s"`
	ExchangeRateLimit float64       `envconfig:"EXCHANGE_RATE_LIMIT" default:"8"`
	ExchangeRateBurst int           `envconfig:"EXCHANGE_RATE_BURST" default:"16"`

	AdvisorBaseURL string        `envconfig:"ADVISOR_BASE_URL" default:"https://api.openai.com/v1"`
	AdvisorAPIKey  string        `envconfig:"ADVISOR_API_KEY" default:""`
	AdvisorModel   string        `envconfig:"ADVISOR_MODEL" default:"gpt-4o-mini"`
	AdvisorTimeout time.Duration `envconfig:"ADVISOR_TIMEOUT" default:"45s"`

	CalendarBaseURL   string        `envconfig:"CALENDAR_BASE_URL" default:"https://economic-calendar.tradingview.com"`
	CalendarCountries string        `envconfig:"CALENDAR_COUNTRIES" default:"US"`
	CalendarTimeout   time.Duration `envconfig:"CALENDAR_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
