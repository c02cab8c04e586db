package handler

import (
	"context"
	"encoding/json"
	"net/http"

	logger "github.com/sirupsen/logrus"

	"spotpilot/src/engine"
)

type runner interface {
	RunOnce(ctx context.Context) *engine.RunReport
}

// TriggerRunHandler starts one trading run and returns its report. A failed
// run is still a 200: the report carries the failure, 5xx is reserved for
// transport problems.
func TriggerRunHandler(eng runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := eng.RunOnce(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(report); err != nil {
			logger.WithError(err).Error("failed to encode run report")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
