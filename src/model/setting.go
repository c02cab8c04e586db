package model

import "time"

// Settings keys. Each key has exactly one writer role: the operator toggles
// SettingBotEnabled, the risk manager owns the heartbeat/expected-running
// pair, the tuner owns the config, consult and calendar keys, and the keys
// CLI owns the encrypted exchange credentials.
const (
	SettingBotEnabled          = "bot.enabled"
	SettingBotExpectedRunning  = "bot.expected_running"
	SettingBotHeartbeat        = "bot.heartbeat"
	SettingStrategyConfig      = "strategy.config"
	SettingTunerLastConsultAM  = "tuner.last_consult_am"
	SettingTunerLastConsultPM  = "tuner.last_consult_pm"
	SettingCalendarEvents      = "calendar.events"
	SettingCalendarRefreshedAt = "calendar.refreshed_at"
	SettingExchangeCredentials = "exchange.credentials"
)

// Setting is one row of the flat string-keyed settings map.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:80" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
