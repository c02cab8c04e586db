package strategy

import (
	"context"
	"encoding/json"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
)

type settingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

var newSettingsRepo = func() settingsRepository {
	return repository.NewSettingsRepository()
}

// Store loads and persists the strategy configuration through the settings
// table. Loading never fails: a missing, unreadable or out-of-bounds value
// degrades to the clamped defaults so the engine always has a config.
type Store struct {
	settings settingsRepository
}

func NewStore() *Store {
	return &Store{settings: newSettingsRepo()}
}

// WithSettings allows overriding the settings backend. Useful for tests.
func (s *Store) WithSettings(settings settingsRepository) *Store {
	return &Store{settings: settings}
}

// Load returns the persisted configuration, clamped.
func (s *Store) Load(ctx context.Context) Config {
	raw, err := s.settings.Get(ctx, model.SettingStrategyConfig)
	if err != nil {
		logger.WithError(err).Warn("Failed to load strategy config, falling back to defaults")
		return DefaultConfig()
	}
	if raw == "" {
		return DefaultConfig()
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		logger.WithError(err).Warn("Stored strategy config is not valid JSON, falling back to defaults")
		return DefaultConfig()
	}

	cfg.Clamp()
	return cfg
}

// Save clamps and persists the configuration. Version bookkeeping is the
// caller's job: the tuner and the manual CLI bump Version before saving.
func (s *Store) Save(ctx context.Context, cfg Config) error {
	cfg.Clamp()

	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	if err := s.settings.Set(ctx, model.SettingStrategyConfig, string(raw)); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"version":    cfg.Version,
		"updated_by": cfg.UpdatedBy,
	}).Info("Strategy config saved")

	return nil
}
