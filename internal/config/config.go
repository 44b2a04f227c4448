// Package config handles application configuration and environment loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// AuthConfig holds bearer-token validation configuration. Token issuance
// is an external concern; the server only validates.
type AuthConfig struct {
	IssuerURL string // OIDC issuer URL for discovery-based validation
	JWKSURL   string // explicit JWKS URL (no discovery)
	JWTSecret string // HS256 shared secret for local/dev tokens
	Audience  string // required audience claim
	Disabled  bool   // disable auth entirely (dev/test only)
}

// Enabled reports whether any bearer validation mechanism is configured.
func (a *AuthConfig) Enabled() bool {
	return !a.Disabled && (a.IssuerURL != "" || a.JWKSURL != "" || a.JWTSecret != "")
}

// Config holds the configuration for the SCIM server.
type Config struct {
	DBPath        string // path to the SQLite resource store file
	ListenAddr    string // HTTP listen address (default ":8080")
	LogLevel      string // debug, info, warn, error (default "info")
	Env           string // "development" (default) or "production"
	DefaultTenant string // tenant name used when X-Tenant-ID is absent

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins (default: ["*"])

	// Auth holds bearer-token validation configuration.
	Auth AuthConfig

	// Warnings collects non-fatal warnings generated during loading. They
	// are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// LoadFromEnv loads configuration from environment variables, applying
// defaults and collecting warnings for insecure dev settings.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:        os.Getenv("DB_PATH"),
		ListenAddr:    os.Getenv("LISTEN_ADDR"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		Env:           os.Getenv("ENV"),
		DefaultTenant: os.Getenv("DEFAULT_TENANT"),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitRPS = f
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitBurst = n
		}
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = origins
	}

	cfg.Auth = AuthConfig{
		IssuerURL: os.Getenv("AUTH_ISSUER_URL"),
		JWKSURL:   os.Getenv("AUTH_JWKS_URL"),
		JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		Audience:  os.Getenv("AUTH_AUDIENCE"),
		Disabled:  strings.EqualFold(os.Getenv("AUTH_DISABLED"), "true"),
	}

	// Defaults
	if cfg.DBPath == "" {
		cfg.DBPath = "scim.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.DefaultTenant == "" {
		cfg.DefaultTenant = "default"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if !cfg.Auth.Enabled() {
		cfg.Warnings = append(cfg.Warnings,
			"no bearer validation configured; set AUTH_ISSUER_URL, AUTH_JWKS_URL, or AUTH_JWT_SECRET")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if !cfg.Auth.Enabled() {
			return nil, fmt.Errorf("bearer validation must be configured in production (set AUTH_ISSUER_URL or AUTH_JWKS_URL)")
		}
		if cfg.Auth.JWTSecret != "" && cfg.Auth.IssuerURL == "" && cfg.Auth.JWKSURL == "" {
			cfg.Warnings = append(cfg.Warnings, "production with a shared HS256 secret; prefer OIDC/JWKS")
		}
		if len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
			return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
		}
	}

	return cfg, nil
}
