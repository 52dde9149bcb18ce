// Package config handles configuration for the auth server: defaults, an
// optional JSON file, environment variables and command-line flags, applied
// in that order so later sources win.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime settings for the ExposureShield auth server.
//
// Fields:
//   - EndpointAddrHTTP: bind address for the HTTP API.
//   - DatabaseDSN: PostgreSQL DSN (pgx). Empty selects the in-memory account directory.
//   - RedisAddr / RedisPassword / RedisDB / RedisPrefix: token store backend.
//     Empty RedisAddr selects the in-memory token store (single instance only).
//   - SecretKey / RefreshSecretKey: HMAC secrets for access and refresh JWTs (HS256).
//     They have no defaults; a missing secret is reported to callers as a 500.
//   - *ValidityDuration: token lifetimes.
//   - ResendVerificationInterval: minimum gap between resent verification
//     emails for one account. Zero disables the limit.
//   - AppBaseURL: prefix for links embedded in verification and reset emails.
//   - LogBackend: "slog" (default) or "zap". LogLevel: debug, info, warn or error.
type Config struct {
	EndpointAddrHTTP                  string
	DatabaseDSN                       string
	RedisAddr                         string
	RedisPassword                     string
	RedisDB                           int
	RedisPrefix                       string
	SecretKey                         string
	RefreshSecretKey                  string
	AccessTokenValidityDuration       time.Duration
	RefreshTokenValidityDuration      time.Duration
	VerificationTokenValidityDuration time.Duration
	ResetTokenValidityDuration        time.Duration
	ResendVerificationInterval        time.Duration
	AppBaseURL                        string
	LogBackend                        string
	LogLevel                          string
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.RedisPrefix = "exposureshield:"
	c.AccessTokenValidityDuration = time.Hour
	c.RefreshTokenValidityDuration = 7 * 24 * time.Hour
	c.VerificationTokenValidityDuration = 24 * time.Hour
	c.ResetTokenValidityDuration = time.Hour
	c.ResendVerificationInterval = time.Minute
	c.AppBaseURL = "http://localhost:8080"
	c.LogBackend = "slog"
	c.LogLevel = "info"
}

// LoadConfig builds a Config by applying defaults, then the JSON file named
// by -c/-config, then the environment, then flags. args is usually
// os.Args[1:].
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, fmt.Errorf("json config: %w", err)
	}
	if err := parseEnv(cfg); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}

	return cfg, nil
}
