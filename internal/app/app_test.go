package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"personajes/portal/internal/audit"
	"personajes/portal/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		HTTP: config.HTTPConfig{
			Addr:            "127.0.0.1:0",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			ShutdownTimeout: time.Second,
		},
		Database: config.DatabaseConfig{WaitTimeout: time.Second},
		Guard: config.GuardConfig{
			SessionCookie: "user",
			BaseURLCookie: "BASE_URL",
			LandingPath:   "/",
			HomePath:      "/inicio",
			AdminPrefixes: []string{"/admin"},
		},
		Backend: config.BackendConfig{
			BaseURL:        "http://127.0.0.1:4000",
			RefreshTimeout: time.Second,
		},
		FrontendDistDir: t.TempDir(),
		AuditLogFile:    filepath.Join(t.TempDir(), "audit.log"),
	}
}

func fastRetries(t *testing.T) {
	t.Helper()
	prev := pingRetryInterval
	pingRetryInterval = 5 * time.Millisecond
	t.Cleanup(func() { pingRetryInterval = prev })
}

func TestNewWithoutDatabaseUsesFileAudit(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, a.db)
	assert.IsType(t, &audit.FileLogger{}, a.audit)
}

func TestNewFailsWhenDatabaseUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = "postgres://portal@127.0.0.1:1/portal?sslmode=disable"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(ctx, cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not ready")
}

func TestWaitForDatabaseRetriesUntilPingSucceeds(t *testing.T) {
	fastRetries(t)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	require.NoError(t, waitForDatabase(context.Background(), db, time.Second, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDatabaseGivesUpAfterTimeout(t *testing.T) {
	fastRetries(t)
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 100; i++ {
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	}

	start := time.Now()
	err = waitForDatabase(context.Background(), db, 30*time.Millisecond, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not ready within 30ms")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForDatabaseStopsOnCancel(t *testing.T) {
	db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = waitForDatabase(ctx, db, time.Minute, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
