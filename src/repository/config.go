package repository

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SnapshotCap bounds the portfolio_snapshots table; oldest rows past the
	// cap are pruned on append.
	SnapshotCap int `envconfig:"SNAPSHOT_CAP" default:"1000"`
	// BotLogCap bounds the bot_logs table the same way.
	BotLogCap int `envconfig:"BOTLOG_CAP" default:"500"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
