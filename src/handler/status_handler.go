package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
	"spotpilot/src/strategy"
)

type statusSettings interface {
	Get(ctx context.Context, key string) (string, error)
}

type statusSnapshots interface {
	Latest(ctx context.Context) (*model.PortfolioSnapshot, error)
}

type statusConfigs interface {
	Load(ctx context.Context) strategy.Config
}

type statusResponse struct {
	Enabled         bool                     `json:"enabled"`
	ExpectedRunning bool                     `json:"expected_running"`
	Heartbeat       *time.Time               `json:"heartbeat,omitempty"`
	LastSnapshot    *model.PortfolioSnapshot `json:"last_snapshot,omitempty"`
	ConfigVersion   int                      `json:"config_version"`
	ConfigUpdatedBy string                   `json:"config_updated_by"`
}

// StatusHandler reports the operator-facing bot state: the enabled switch,
// the risk manager's liveness heartbeat, the latest valuation snapshot and
// the active config version. Missing pieces degrade to their zero values
// rather than failing the endpoint.
func StatusHandler(settings statusSettings, snapshots statusSnapshots, configs statusConfigs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp := statusResponse{Enabled: true}

		if raw, err := settings.Get(ctx, model.SettingBotEnabled); err == nil && raw != "" {
			if on, perr := strconv.ParseBool(raw); perr == nil {
				resp.Enabled = on
			}
		}
		if raw, err := settings.Get(ctx, model.SettingBotExpectedRunning); err == nil && raw != "" {
			if on, perr := strconv.ParseBool(raw); perr == nil {
				resp.ExpectedRunning = on
			}
		}
		if raw, err := settings.Get(ctx, model.SettingBotHeartbeat); err == nil && raw != "" {
			if at, perr := time.Parse(time.RFC3339, raw); perr == nil {
				resp.Heartbeat = &at
			}
		}

		if snap, err := snapshots.Latest(ctx); err == nil {
			resp.LastSnapshot = snap
		} else {
			logger.WithError(err).Warn("failed to load latest snapshot for status")
		}

		cfg := configs.Load(ctx)
		resp.ConfigVersion = cfg.Version
		resp.ConfigUpdatedBy = cfg.UpdatedBy

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.WithError(err).Error("failed to encode status response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// DefaultStatusHandler wires the handler to the production stores.
func DefaultStatusHandler() http.HandlerFunc {
	return StatusHandler(repository.NewSettingsRepository(), repository.NewSnapshotRepository(), strategy.NewStore())
}
