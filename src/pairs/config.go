package pairs

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MinQuoteVolume is the 24h quote-currency turnover below which a pair
	// is considered too illiquid to trade.
	MinQuoteVolume float64 `envconfig:"PAIRS_MIN_QUOTE_VOLUME" default:"100000"`
	// MaxSpread is the maximum tolerated (ask-bid)/ask fraction.
	MaxSpread float64 `envconfig:"PAIRS_MAX_SPREAD" default:"0.005"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
