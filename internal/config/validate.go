package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/JonMunkholm/ordercsv/internal/export"
)

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database
	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Export
	if _, ok := export.LookupStrategy(c.Export.DefaultStrategy); !ok {
		errs = append(errs, fmt.Sprintf("EXPORT_DEFAULT_STRATEGY (%q) is not a known strategy", c.Export.DefaultStrategy))
	}
	if c.Export.MaxConcurrent <= 0 {
		errs = append(errs, "EXPORT_MAX_CONCURRENT must be positive")
	}
	if c.Database.MaxConns > 0 && c.Export.MaxConcurrent >= c.Database.MaxConns {
		errs = append(errs, fmt.Sprintf("EXPORT_MAX_CONCURRENT (%d) must be < DB_MAX_CONNS (%d)",
			c.Export.MaxConcurrent, c.Database.MaxConns))
	}
	if c.Export.MaxWaitTime <= 0 {
		errs = append(errs, "EXPORT_MAX_WAIT_TIME must be positive")
	}
	if c.Export.FlushInterval <= 0 {
		errs = append(errs, "EXPORT_FLUSH_INTERVAL must be positive")
	}
	if c.Export.StreamBuffer <= 0 {
		errs = append(errs, "EXPORT_STREAM_BUFFER must be positive")
	}
	if c.Export.Timeout <= 0 {
		errs = append(errs, "EXPORT_TIMEOUT must be positive")
	}
	if le := strings.ToLower(c.Export.LineEnding); le != "lf" && le != "crlf" {
		errs = append(errs, fmt.Sprintf("EXPORT_LINE_ENDING (%q) must be one of: lf, crlf", c.Export.LineEnding))
	}
	if export.ParseCharset(c.Export.Charset, "") == "" {
		errs = append(errs, fmt.Sprintf("EXPORT_CHARSET (%q) must be one of: utf-8, shift_jis", c.Export.Charset))
	}
	if _, err := c.Export.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("EXPORT_TIMEZONE (%q) is not a valid time zone", c.Export.Timezone))
	}

	// Rate limit
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.ExportLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_EXPORT must be positive when rate limiting is enabled")
	}

	// Security
	for _, cidr := range c.Security.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			if _, err := netip.ParseAddr(cidr); err != nil {
				errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES entry %q is not a valid CIDR or address", cidr))
			}
		}
	}
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	// Metrics
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("METRICS_PATH (%q) must start with /", c.Metrics.Path))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// String returns a safe representation of the config for logging.
// The database URL and API keys are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: [MASKED], MaxConns: %d, MinConns: %d}, ",
		c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Export: {Strategy: %q, MaxConcurrent: %d, FlushInterval: %d, StreamBuffer: %d, Timezone: %q}, ",
		c.Export.DefaultStrategy, c.Export.MaxConcurrent, c.Export.FlushInterval, c.Export.StreamBuffer, c.Export.Timezone)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d, ExportLimit: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.ExportLimit)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
