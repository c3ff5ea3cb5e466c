package main

import (
	"encoding/json"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"whatsapp-sequencer/internal/app"
	"whatsapp-sequencer/internal/config"
	"whatsapp-sequencer/internal/logging"
)

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
}

var rootCmd = &cobra.Command{
	Use:          "sequencectl",
	Short:        "Operate the WhatsApp sequence scheduler",
	SilenceUsage: true,
}

// environment is the loaded configuration plus a logger built from it.
type environment struct {
	cfg    *config.Config
	logger *logrus.Logger
}

func loadEnvironment() (*environment, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(cfg.Env, level)
	if err := logging.InitSentry(cfg.SentryDSN, cfg.Env); err != nil {
		logger.WithError(err).Warn("Sentry initialization failed; continuing without error reporting")
	}
	return &environment{cfg: cfg, logger: logger}, nil
}

func (e *environment) entry(module string) *logrus.Entry {
	return logging.Component(e.logger, e.cfg.Env, module)
}

// service builds the full app with the cron trigger disabled so commands
// only run what they ask for.
func (e *environment) service() (*app.App, error) {
	cfg := *e.cfg
	cfg.SchedulerEnabled = false
	return app.New(&cfg, e.logger)
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
