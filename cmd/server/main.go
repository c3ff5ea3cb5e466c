package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"whatsapp-sequencer/internal/app"
	"whatsapp-sequencer/internal/config"
	"whatsapp-sequencer/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	entry := logging.Component(logger, cfg.Env, "server")
	if err := logging.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		entry.WithError(err).Warn("Sentry initialization failed; continuing without error reporting")
	}
	defer logging.Flush()

	if !strings.EqualFold(cfg.Env, "development") {
		gin.SetMode(gin.ReleaseMode)
	}

	service, err := app.New(cfg, logger)
	if err != nil {
		entry.WithError(err).Fatal("Failed to initialize service")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Start(ctx); err != nil {
		entry.WithError(err).Fatal("Failed to start scheduler")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           service.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		entry.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.WithError(err).Fatal("Failed to run server")
		}
	}()

	<-ctx.Done()
	entry.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Warn("HTTP server did not shut down cleanly")
	}
	if err := service.Close(shutdownCtx); err != nil {
		entry.WithError(err).Warn("Failed to close database")
	}
}
