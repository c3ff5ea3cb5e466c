package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "./test.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "v18.0", cfg.MetaAPIVersion)
	assert.Equal(t, "https://graph.facebook.com", cfg.MetaAPIBaseURL)
	assert.Equal(t, "* * * * *", cfg.SchedulerCron)
	assert.Equal(t, 30*time.Second, cfg.TemplateCacheTTL)
	assert.True(t, cfg.OfferEnvFallback)
	assert.True(t, cfg.SchedulerEnabled)
}

func TestLoadConfigRequiresDatabaseURLForPostgres(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DB_DRIVER", "oracle")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigParsesOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("CHATWOOT_BASE_URL", "https://cw.example.com/")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("TEMPLATE_CACHE_TTL", "not-a-duration")
	t.Setenv("OFFER_ENV_FALLBACK", "false")
	t.Setenv("META_RATE_PER_SECOND", "20")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://cw.example.com", cfg.ChatwootBaseURL)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 30*time.Second, cfg.TemplateCacheTTL)
	assert.False(t, cfg.OfferEnvFallback)
	assert.Equal(t, 20.0, cfg.MetaRatePerSecond)
}
