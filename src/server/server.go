package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"spotpilot/src/engine"
	"spotpilot/src/handler"
)

// NewRouter builds the HTTP surface: an open healthcheck and status route,
// and mutating routes guarded by the run secret.
func NewRouter(eng *engine.Engine, runSecret string) chi.Router {
	// Router with middleware
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error(" \"/health error")
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", handler.DefaultStatusHandler())

		r.Group(func(r chi.Router) {
			r.Use(RunSecretMiddleware(runSecret))
			r.Post("/run", handler.TriggerRunHandler(eng))
			r.Post("/bot/enable", handler.DefaultEnableBotHandler())
			r.Post("/bot/disable", handler.DefaultDisableBotHandler())
		})
	})

	return r
}

func StartServer(port string, eng *engine.Engine) {
	config := GetConfig()
	if port == "" {
		port = config.Port
	}

	r := NewRouter(eng, config.RunSecret)

	// Graceful server
	// Server setup
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
