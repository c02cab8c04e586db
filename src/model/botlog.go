package model

import "time"

// BotLog is a bounded audit trail of run-level events. Detail carries
// structured context as JSON text. The repository prunes the oldest rows
// past a configured cap on every append.
type BotLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"`
	Scope     string    `gorm:"size:60;index" json:"scope"`
	Message   string    `gorm:"type:text" json:"message"`
	Detail    string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (BotLog) TableName() string {
	return "bot_logs"
}
