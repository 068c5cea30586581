package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"library-server/internal/config"
	"library-server/internal/events"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	var cfg config.Config
	cfg.Database.Path = filepath.Join(dir, "library.db")
	cfg.Auth.JWTSecret = "secret"
	cfg.Auth.TokenTTLMinutes = 30
	cfg.Fines.RatePerDay = 5
	cfg.Borrow.DefaultDays = 14
	cfg.Borrow.MaxDays = 30
	cfg.Storage.Driver = config.StorageLocal
	cfg.Storage.LocalDir = filepath.Join(dir, "uploads")
	cfg.Storage.KeyPrefix = "library"
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	return cfg
}

func TestBuildWithLocalStorage(t *testing.T) {
	cfg := testConfig(t)
	logger, _ := test.NewNullLogger()

	deps, err := Build(context.Background(), cfg, logger)
	require.NoError(t, err)
	defer deps.Close()

	assert.Equal(t, cfg.Storage.LocalDir, deps.UploadsDir)
	assert.IsType(t, events.NopPublisher{}, deps.Publisher)

	admin, err := deps.Users.CreateAdmin(context.Background(), "Root", "root@example.com", "rootpass")
	require.NoError(t, err)
	session, err := deps.Users.Login(context.Background(), "root@example.com", "rootpass")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, session.User.ID)

	n, err := deps.Borrows.SweepOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNewLogger(t *testing.T) {
	cfg := testConfig(t)
	logger := NewLogger(cfg)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	cfg.Log.Level = "loud"
	cfg.Log.Format = "text"
	logger = NewLogger(cfg)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
