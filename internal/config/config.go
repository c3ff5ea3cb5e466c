package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Port     string
	Env      string
	LogLevel string

	DBDriver       string
	DatabaseURL    string
	DBPath         string
	DBMaxOpenConns int
	DBMaxIdleConns int

	MetaAPIBaseURL    string
	MetaAPIVersion    string
	MetaRatePerSecond float64

	ChatwootBaseURL        string
	ChatwootAccountID      string
	ChatwootAPIAccessToken string
	ChatwootAccountLabel   string
	ChatwootAccountPhone   string
	ChatwootRatePerSecond  float64
	OfferEnvFallback       bool

	HTTPTimeout time.Duration

	SchedulerEnabled bool
	SchedulerCron    string
	TemplateCacheTTL time.Duration

	VerifyToken string
	SentryDSN   string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", ""),

		DBDriver:       strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DBPath:         getEnv("DB_PATH", "./sequences.db"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),

		MetaAPIBaseURL:    strings.TrimRight(getEnv("META_API_BASE_URL", "https://graph.facebook.com"), "/"),
		MetaAPIVersion:    getEnv("META_API_VERSION", "v18.0"),
		MetaRatePerSecond: getEnvFloat("META_RATE_PER_SECOND", 0),

		ChatwootBaseURL:        strings.TrimRight(getEnv("CHATWOOT_BASE_URL", "https://app.chatwoot.com"), "/"),
		ChatwootAccountID:      strings.TrimSpace(getEnv("CHATWOOT_ACCOUNT_ID", "")),
		ChatwootAPIAccessToken: strings.TrimSpace(getEnv("CHATWOOT_API_ACCESS_TOKEN", "")),
		ChatwootAccountLabel:   strings.TrimSpace(getEnv("CHATWOOT_ACCOUNT_LABEL", "")),
		ChatwootAccountPhone:   strings.TrimSpace(getEnv("CHATWOOT_ACCOUNT_PHONE", "")),
		ChatwootRatePerSecond:  getEnvFloat("CHATWOOT_RATE_PER_SECOND", 0),
		OfferEnvFallback:       getEnvBool("OFFER_ENV_FALLBACK", true),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", 15*time.Second),

		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerCron:    getEnv("SCHEDULER_CRON", "* * * * *"),
		TemplateCacheTTL: getEnvDuration("TEMPLATE_CACHE_TTL", 30*time.Second),

		VerifyToken: getEnv("VERIFY_TOKEN", ""),
		SentryDSN:   getEnv("SENTRY_DSN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DB_DRIVER is %s", DriverPostgres)
		}
	case DriverSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required when DB_DRIVER is %s", DriverSQLite)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
