package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// RunBudget is the wall-clock ceiling for one trading run.
	RunBudget time.Duration `envconfig:"ENGINE_RUN_BUDGET" default:"120s"`
	// AnalysisWorkers bounds the per-pair scoring parallelism.
	AnalysisWorkers int `envconfig:"ENGINE_ANALYSIS_WORKERS" default:"4"`
	// QuoteCurrency is the settlement asset every pair trades against.
	QuoteCurrency string `envconfig:"QUOTE_CURRENCY" default:"USDT"`
	// LoopPeriod is the tick interval of the continuous trading loop.
	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"15m"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
