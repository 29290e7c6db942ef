package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sundayezeilo/shortlink/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(driver string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			BaseURL:         "http://sho.rt",
			ReadTimeout:     time.Second,
			WriteTimeout:    time.Second,
			IdleTimeout:     time.Second,
			ShutdownTimeout: time.Second,
		},
		App: config.AppConfig{
			Environment:    "test",
			LogLevel:       "debug",
			ServiceName:    "shortlink",
			ServiceVersion: "test",
		},
		Store: config.StoreConfig{Driver: driver},
		Link: config.LinkConfig{
			CodeLength:      6,
			DefaultValidity: 30,
			CodeAttempts:    3,
		},
		Audit: config.AuditConfig{Enabled: false},
	}
}

func shorten(t *testing.T, h http.Handler, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/shorten", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestNewWithConfig_Memory(t *testing.T) {
	ctx := context.Background()
	a, err := NewWithConfig(ctx, testConfig(config.DriverMemory), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Shutdown(ctx)) })

	h := a.Server.Handler()
	out := shorten(t, h, `{"url":"https://example.com/a","code":"abc"}`)
	assert.Equal(t, "http://sho.rt/abc", out["shortUrl"])

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/abc", nil))
	assert.Equal(t, http.StatusFound, rr.Code)
	assert.Equal(t, "https://example.com/a", rr.Header().Get("Location"))
}

func TestNewWithConfig_FilePersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(config.DriverFile)
	cfg.Store.FilePath = filepath.Join(t.TempDir(), "db.json")

	first, err := NewWithConfig(ctx, cfg, logger)
	require.NoError(t, err)
	shorten(t, first.Server.Handler(), `{"url":"https://example.com/kept","code":"kept"}`)
	require.NoError(t, first.Shutdown(ctx))

	second, err := NewWithConfig(ctx, cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, second.Shutdown(ctx)) })

	link, err := second.Service.Stats(ctx, "kept")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/kept", link.OriginalURL)
}

func TestNewWithConfig_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(config.DriverSQLite)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "links.db")

	a, err := NewWithConfig(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Shutdown(ctx)) })

	out := shorten(t, a.Server.Handler(), `{"url":"https://example.com/sql"}`)
	code, _ := out["code"].(string)
	assert.Len(t, code, 6)
}

func TestNewWithConfig_UnknownDriver(t *testing.T) {
	_, err := NewWithConfig(context.Background(), testConfig("redis"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown store driver "redis"`)
}

func TestShutdown_DrainsAuditEvents(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cfg := testConfig(config.DriverMemory)
	cfg.Audit = config.AuditConfig{
		Enabled:    true,
		Stack:      "URL-SHORTENER",
		Package:    "backend",
		Timeout:    time.Second,
		BufferSize: 16,
		Workers:    1,
	}

	a, err := NewWithConfig(ctx, cfg, logger)
	require.NoError(t, err)

	shorten(t, a.Server.Handler(), `{"url":"https://example.com/x","code":"x1"}`)
	require.NoError(t, a.Shutdown(ctx))

	logs := buf.String()
	assert.Contains(t, logs, `"message":"Incoming POST /shorten"`)
	assert.Contains(t, logs, `"message":"Short URL created: x1 → https://example.com/x"`)
	assert.Contains(t, logs, `"stack":"URL-SHORTENER"`)
}

func TestMigrate_SnapshotDriversAreNoop(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, Migrate(context.Background(), testConfig(config.DriverMemory), logger))
	assert.Contains(t, buf.String(), "store needs no migration")
}

func TestMigrate_SQLite(t *testing.T) {
	cfg := testConfig(config.DriverSQLite)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "links.db")

	require.NoError(t, Migrate(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	assert.FileExists(t, cfg.Store.SQLitePath)
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"bogus", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := setupLogger(tt.level, &buf)
			ctx := context.Background()

			assert.Equal(t, tt.wantDebug, logger.Enabled(ctx, slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, logger.Enabled(ctx, slog.LevelInfo))
			assert.Equal(t, tt.wantWarn, logger.Enabled(ctx, slog.LevelWarn))
			assert.True(t, logger.Enabled(ctx, slog.LevelError))

			logger.Error("boom")
			assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
		})
	}
}

func TestBootstrap_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, logger, err := Bootstrap(io.Discard)
	require.NoError(t, err)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
