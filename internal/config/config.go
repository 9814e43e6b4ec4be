// Package config provides centralized configuration management for the
// export service. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/ordercsv/internal/export"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Export   ExportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout must stay 0 for long exports; EXPORT_TIMEOUT bounds them instead.
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout also bounds how long shutdown waits for running exports.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout applies to every route except the export downloads.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required).
	// Supports both DATABASE_URL and DB_URL.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ExportConfig holds CSV export settings.
type ExportConfig struct {
	// DefaultStrategy is used when a request names no strategy or an
	// unknown one (default: sequence)
	DefaultStrategy string `env:"EXPORT_DEFAULT_STRATEGY" default:"sequence"`

	// MaxConcurrent bounds parallel exports; each holds one DB connection (default: 4)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long a request waits for an export slot (default: 10s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"10s"`

	// FlushInterval is the number of CSV lines between flushes (default: 1000)
	FlushInterval int `env:"EXPORT_FLUSH_INTERVAL" default:"1000"`

	// StreamBuffer is the number of chunks queued between the export and the
	// HTTP response (default: 16)
	StreamBuffer int `env:"EXPORT_STREAM_BUFFER" default:"16"`

	LineEnding string `env:"EXPORT_LINE_ENDING" default:"lf"`
	Charset    string `env:"EXPORT_CHARSET" default:"utf-8"`

	// Timezone is the zone RFC 3339 request dates are converted to before
	// being compared with order dates (default: Local)
	Timezone string `env:"EXPORT_TIMEZONE" default:"Local"`

	// StrictOrdering aborts an export when rows arrive out of order.
	StrictOrdering bool `env:"EXPORT_STRICT_ORDERING" default:"false"`

	// Timeout bounds a single export (default: 30m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"30m"`
}

// RateLimitConfig holds per-IP rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ExportLimit is requests per minute for download endpoints (default: 10)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects /api routes with X-API-Key
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Strategy returns the configured default strategy.
func (c *ExportConfig) Strategy() export.Strategy {
	return export.ParseStrategy(c.DefaultStrategy, export.DefaultStrategy)
}

// Defaults returns the export options applied when a request does not
// override them.
func (c *ExportConfig) Defaults() export.Options {
	return export.Options{
		Strategy:   c.Strategy(),
		LineEnding: export.ParseLineEnding(c.LineEnding, export.LineEndingLF),
		Charset:    export.ParseCharset(c.Charset, export.CharsetUTF8),
		Strict:     c.StrictOrdering,
	}
}

// Location loads the configured time zone.
func (c *ExportConfig) Location() (*time.Location, error) {
	if strings.EqualFold(c.Timezone, "local") || c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// Limits returns the exporter tuning derived from this config.
func (c *ExportConfig) Limits() export.Config {
	return export.Config{
		MaxConcurrent: c.MaxConcurrent,
		MaxWait:       c.MaxWaitTime,
		FlushInterval: c.FlushInterval,
	}
}
