package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"whatsapp-sequencer/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:              "test",
		DBDriver:         config.DriverSQLite,
		DBPath:           filepath.Join(t.TempDir(), "app.db"),
		DBMaxOpenConns:   1,
		DBMaxIdleConns:   1,
		MetaAPIBaseURL:   "http://127.0.0.1:1",
		MetaAPIVersion:   "v18.0",
		ChatwootBaseURL:  "http://127.0.0.1:1",
		HTTPTimeout:      time.Second,
		TemplateCacheTTL: time.Minute,
		VerifyToken:      "secret",
	}
}

func TestNewWiresRouterAndManualScheduler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	a, err := New(testConfig(t), logger)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, a.Start(ctx))
	defer func() { assert.NoError(t, a.Close(context.Background())) }()

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42", w.Body.String())

	w = httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/scheduler/tick", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, a.Scheduler.Stats().Ticks)
}
