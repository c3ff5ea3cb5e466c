package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"whatsapp-sequencer/internal/database"
	"whatsapp-sequencer/internal/models"
)

func useSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.db")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", path)
	t.Setenv("APP_ENV", "test")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("SENTRY_DSN", "")
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateAndTick(t *testing.T) {
	useSQLite(t)

	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Schema is up to date")

	out, err = run(t, "tick")
	require.NoError(t, err)
	assert.Contains(t, out, `"found": 0`)
}

func TestProcessUnknownSubscription(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "process", "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestImportSQLite(t *testing.T) {
	target := useSQLite(t)

	sourcePath := filepath.Join(t.TempDir(), "source.db")
	src, err := gorm.Open(sqlite.Open(sourcePath), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(src))
	require.NoError(t, src.Create(&models.Contact{PhoneNumber: "+15550001111", FirstName: "Ava"}).Error)
	sqlDB, err := src.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	out, err := run(t, "import-sqlite", sourcePath)
	require.NoError(t, err)
	assert.Contains(t, out, "contacts")

	dst, err := gorm.Open(sqlite.Open(target), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	var count int64
	require.NoError(t, dst.Model(&models.Contact{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestImportSQLiteMissingSource(t *testing.T) {
	useSQLite(t)
	_, err := run(t, "import-sqlite", filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}
