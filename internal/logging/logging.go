// Package logging builds the process logger and forwards unexpected errors
// to Sentry when it is configured.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

const serviceName = "whatsapp-sequence-manager"

// New returns a logger writing text in development and JSON elsewhere.
// level overrides the environment default when it parses.
func New(env, level string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(env, "development") {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	}

	if level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			logger.SetLevel(parsed)
		} else {
			logger.WithField("level", level).Warn("Unknown LOG_LEVEL, keeping default")
		}
	}
	return logger
}

// Component tags every entry with the service, environment and module.
func Component(logger *logrus.Logger, env, module string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"service":     serviceName,
		"environment": env,
		"module":      module,
	})
}

// InitSentry enables error reporting. An empty DSN is a no-op.
func InitSentry(dsn, env string) error {
	if dsn == "" {
		return nil
	}
	return sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		ServerName:  serviceName,
	})
}

// Flush waits for buffered Sentry events before shutdown.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// ReportError logs err with fields and sends it to Sentry with the same fields
// as extras.
func ReportError(entry *logrus.Entry, message string, err error, fields logrus.Fields) {
	entry.WithFields(fields).WithError(err).Error(message)

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("message", message)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		for k, v := range entry.Data {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}
