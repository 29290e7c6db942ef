package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/sundayezeilo/shortlink/internal/audit"
	"github.com/sundayezeilo/shortlink/internal/config"
	"github.com/sundayezeilo/shortlink/internal/server"
	"github.com/sundayezeilo/shortlink/internal/shortener"
	"github.com/sundayezeilo/shortlink/internal/store"
	"github.com/sundayezeilo/shortlink/internal/store/postgres"
	"github.com/sundayezeilo/shortlink/internal/store/sqlite"
)

// App holds the application dependencies and configuration.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Audit   audit.Emitter
	Service shortener.Service
	Handler *shortener.Handler
	Server  *server.Server

	closers []func(context.Context) error
}

// New loads the environment and configuration, then wires the application.
func New(ctx context.Context) (*App, error) {
	cfg, logger, err := Bootstrap(os.Stdout)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(ctx, cfg, logger)
}

// Bootstrap loads .env outside production, then the configuration, and
// returns a logger writing JSON to w.
func Bootstrap(w io.Writer) (*config.Config, *slog.Logger, error) {
	loadEnv()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, setupLogger(cfg.App.LogLevel, w), nil
}

// NewWithConfig wires the application from an already loaded configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.App.ServiceVersion,
		"store", cfg.Store.Driver,
	)

	a := &App{Config: cfg, Logger: logger}

	a.Audit = a.setupAudit()

	repo, err := a.openRepository(ctx)
	if err != nil {
		_ = a.Shutdown(ctx)
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}

	a.Service = shortener.NewService(repo, &shortener.ServiceConfig{
		CodeLength:      cfg.Link.CodeLength,
		CodeAttempts:    cfg.Link.CodeAttempts,
		DefaultValidity: cfg.Link.DefaultValidity,
		BaseURL:         cfg.Server.BaseURL,
		Audit:           a.Audit,
	})
	a.Handler = shortener.NewHandler(shortener.HandlerConfig{
		Service: a.Service,
		Logger:  logger,
		Audit:   a.Audit,
	})
	a.Server = server.New(cfg, logger, a.Handler, a.Audit)

	logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)
	return a, nil
}

// Start starts the application server.
func (a *App) Start(ctx context.Context) error {
	a.Logger.Info("server starting",
		"port", a.Config.Server.Port,
		"base_url", a.Config.Server.BaseURL,
	)

	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown drains pending audit events and releases the store, in reverse
// order of acquisition.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) onShutdown(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// setupAudit builds the emitter used by the service and the server.
func (a *App) setupAudit() audit.Emitter {
	cfg := a.Config.Audit
	if !cfg.Enabled {
		a.Logger.Info("audit disabled")
		return audit.Nop{}
	}

	var sink audit.Sink = audit.LogSink{Logger: a.Logger}
	if cfg.Endpoint != "" {
		sink = audit.NewHTTPSink(cfg.Endpoint, cfg.Token, &http.Client{Timeout: cfg.Timeout})
	}

	n := audit.NewNotifier(audit.NotifierConfig{
		Sink:       sink,
		Logger:     a.Logger,
		Stack:      cfg.Stack,
		Package:    cfg.Package,
		Timeout:    cfg.Timeout,
		BufferSize: cfg.BufferSize,
		Workers:    cfg.Workers,
	})
	a.onShutdown(n.Close)

	a.Logger.Info("audit enabled", "remote", cfg.Endpoint != "", "workers", cfg.Workers)
	return n
}

// openRepository opens the configured store. SQL schemas are applied on open.
func (a *App) openRepository(ctx context.Context) (shortener.Repository, error) {
	cfg := a.Config

	switch cfg.Store.Driver {
	case config.DriverMemory:
		return store.NewRepository(store.NewMemoryBackend()), nil

	case config.DriverFile:
		a.Logger.Info("using file store", "path", cfg.Store.FilePath)
		return store.NewRepository(store.NewFileBackend(cfg.Store.FilePath)), nil

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.onShutdown(func(context.Context) error { return sqlite.Close(db) })
		if err := sqlite.Migrate(ctx, db); err != nil {
			return nil, err
		}
		a.Logger.Info("using sqlite store", "path", cfg.Store.SQLitePath)
		return sqlite.NewRepository(db, nil), nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			ConnString: cfg.Database.ConnectionString(),
			MaxConns:   cfg.Database.MaxConns,
			MinConns:   cfg.Database.MinConns,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onShutdown(func(context.Context) error {
			pool.Close()
			a.Logger.Info("database connection closed")
			return nil
		})
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, err
		}
		return postgres.NewRepository(pool, nil), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Migrate applies the schema of the configured SQL store. Snapshot stores
// need no schema and are left untouched.
func Migrate(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer func() { _ = sqlite.Close(db) }()
		if err := sqlite.Migrate(ctx, db); err != nil {
			return err
		}

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.PoolConfig{
			ConnString: cfg.Database.ConnectionString(),
			MaxConns:   cfg.Database.MaxConns,
			MinConns:   cfg.Database.MinConns,
		}, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}

	default:
		logger.Info("store needs no migration", "driver", cfg.Store.Driver)
		return nil
	}

	logger.Info("migration complete", "driver", cfg.Store.Driver)
	return nil
}

// loadEnv loads a .env file outside production. A missing file is fine.
func loadEnv() {
	switch os.Getenv("APP_ENV") {
	case "", "development", "test":
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to load .env file", "error", err)
		}
	}
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string, w io.Writer) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}
