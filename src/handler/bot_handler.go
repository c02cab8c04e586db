package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/model"
	"spotpilot/src/repository"
)

type botSwitch interface {
	Set(ctx context.Context, key, value string) error
}

// SetBotEnabledHandler flips the operator kill switch. Disabling does not
// interrupt a run in progress; the next run sees the flag and halts.
func SetBotEnabledHandler(settings botSwitch, enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := settings.Set(r.Context(), model.SettingBotEnabled, strconv.FormatBool(enabled)); err != nil {
			logger.WithError(err).Error("failed to update bot enabled flag")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		logger.WithField("enabled", enabled).Info("Bot enabled flag updated")

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]bool{"enabled": enabled}); err != nil {
			logger.WithError(err).Error("failed to encode bot switch response")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// DefaultEnableBotHandler wires the enable switch to the settings store.
func DefaultEnableBotHandler() http.HandlerFunc {
	return SetBotEnabledHandler(repository.NewSettingsRepository(), true)
}

// DefaultDisableBotHandler wires the disable switch to the settings store.
func DefaultDisableBotHandler() http.HandlerFunc {
	return SetBotEnabledHandler(repository.NewSettingsRepository(), false)
}
