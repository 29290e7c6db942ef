package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sundayezeilo/shortlink/internal/expiry"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Store    StoreConfig
	Database DatabaseConfig
	Link     LinkConfig
	Audit    AuditConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"SERVER_PORT" default:"8080"`
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	BaseURL         string        `envconfig:"SERVER_BASE_URL" default:"http://localhost:8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSOrigins     []string      `envconfig:"SERVER_CORS_ORIGINS"` // empty allows any origin
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base URL must be absolute: %q", c.BaseURL)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	if c.IdleTimeout <= 0 {
		return fmt.Errorf("idle timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}
	return nil
}

// AppConfig holds application-specific configuration.
type AppConfig struct {
	Environment    string `envconfig:"APP_ENV" default:"development"` // development, staging, production, test
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`      // debug, info, warn, error
	ServiceName    string `envconfig:"SERVICE_NAME" default:"shortlink"`
	ServiceVersion string `envconfig:"SERVICE_VERSION" default:"dev"`
}

// Validate validates the app configuration.
func (c *AppConfig) Validate() error {
	validEnvs := []string{"development", "staging", "production", "test"}
	if !slices.Contains(validEnvs, c.Environment) {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Environment)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	return nil
}

// StoreConfig selects where links are persisted.
type StoreConfig struct {
	Driver     string `envconfig:"STORE_DRIVER" default:"file"`
	FilePath   string `envconfig:"STORE_FILE_PATH" default:"db.json"`
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"links.db"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case DriverFile:
		if c.FilePath == "" {
			return fmt.Errorf("file path cannot be empty for the file driver")
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path cannot be empty for the sqlite driver")
		}
	case DriverMemory, DriverPostgres:
	default:
		return fmt.Errorf("invalid store driver: %s (must be one of: file, memory, postgres, sqlite)", c.Driver)
	}
	return nil
}

// DatabaseConfig holds PostgreSQL connection configuration.
// It is only validated when the postgres driver is selected.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"2"`
}

// Validate validates the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if c.Password == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.MaxConns <= 0 {
		return fmt.Errorf("max connections must be positive")
	}
	if c.MinConns <= 0 {
		return fmt.Errorf("min connections must be positive")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min connections (%d) cannot be greater than max connections (%d)", c.MinConns, c.MaxConns)
	}

	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.SSLMode) {
		return fmt.Errorf("invalid SSL mode: %s (must be one of: disable, require, verify-ca, verify-full)", c.SSLMode)
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// LinkConfig holds short-link policy.
type LinkConfig struct {
	CodeLength      int `envconfig:"LINK_CODE_LENGTH" default:"6"`
	DefaultValidity int `envconfig:"LINK_DEFAULT_VALIDITY" default:"30"` // minutes
	CodeAttempts    int `envconfig:"LINK_CODE_ATTEMPTS" default:"3"`
}

// Validate validates the link configuration.
func (c *LinkConfig) Validate() error {
	if c.CodeLength < 1 || c.CodeLength > 64 {
		return fmt.Errorf("code length must be between 1 and 64, got %d", c.CodeLength)
	}
	if c.DefaultValidity <= 0 {
		return fmt.Errorf("default validity must be positive")
	}
	if c.DefaultValidity > expiry.MaxValidity {
		return fmt.Errorf("default validity must be at most %d minutes, got %d", expiry.MaxValidity, c.DefaultValidity)
	}
	if c.CodeAttempts <= 0 {
		return fmt.Errorf("code attempts must be positive")
	}
	return nil
}

// AuditConfig configures delivery of audit events to the log collector.
type AuditConfig struct {
	Enabled    bool          `envconfig:"AUDIT_ENABLED" default:"true"`
	Endpoint   string        `envconfig:"AUDIT_ENDPOINT"` // empty writes events to the application log
	Token      string        `envconfig:"AUDIT_TOKEN"`
	Stack      string        `envconfig:"AUDIT_STACK" default:"URL-SHORTENER"`
	Package    string        `envconfig:"AUDIT_PACKAGE" default:"backend"`
	Timeout    time.Duration `envconfig:"AUDIT_TIMEOUT" default:"5s"`
	BufferSize int           `envconfig:"AUDIT_BUFFER_SIZE" default:"256"`
	Workers    int           `envconfig:"AUDIT_WORKERS" default:"2"`
}

// Validate validates the audit configuration.
func (c *AuditConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint != "" {
		if u, err := url.Parse(c.Endpoint); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("audit endpoint must be an http(s) URL: %q", c.Endpoint)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("audit timeout must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("audit buffer size must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("audit workers must be positive")
	}
	return nil
}

type section struct {
	name     string
	dest     any
	validate func() error
}

// Load loads configuration from environment variables only.
// (Do .env loading in the app, not here.)
func Load() (*Config, error) {
	cfg := &Config{}

	sections := []section{
		{"Server", &cfg.Server, cfg.Server.Validate},
		{"App", &cfg.App, cfg.App.Validate},
		{"Store", &cfg.Store, cfg.Store.Validate},
		{"Database", &cfg.Database, func() error {
			if cfg.Store.Driver != DriverPostgres {
				return nil
			}
			return cfg.Database.Validate()
		}},
		{"Link", &cfg.Link, cfg.Link.Validate},
		{"Audit", &cfg.Audit, cfg.Audit.Validate},
	}

	for _, s := range sections {
		if err := envconfig.Process("", s.dest); err != nil {
			return nil, fmt.Errorf("failed to load %s config: %w", s.name, err)
		}
		if err := s.validate(); err != nil {
			return nil, fmt.Errorf("invalid %s config: %w", s.name, err)
		}
	}

	return cfg, nil
}
