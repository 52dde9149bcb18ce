package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/exposureshield/internal/flagx"
	"github.com/dmitrijs2005/exposureshield/internal/timex"
)

// jsonConfig is the on-disk shape of the config file. Durations accept both
// "15m" strings and integer nanoseconds.
type jsonConfig struct {
	EndpointAddrHTTP                  string         `json:"endpoint_addr_http"`
	DatabaseDSN                       string         `json:"database_dsn"`
	RedisAddr                         string         `json:"redis_addr"`
	RedisPassword                     string         `json:"redis_password"`
	RedisDB                           *int           `json:"redis_db"`
	RedisPrefix                       string         `json:"redis_prefix"`
	SecretKey                         string         `json:"secret_key"`
	RefreshSecretKey                  string         `json:"refresh_secret_key"`
	AccessTokenValidityDuration       timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration      timex.Duration `json:"refresh_token_validity_duration"`
	VerificationTokenValidityDuration timex.Duration `json:"verification_token_validity_duration"`
	ResetTokenValidityDuration        timex.Duration `json:"reset_token_validity_duration"`
	ResendVerificationInterval        timex.Duration `json:"resend_verification_interval"`
	AppBaseURL                        string         `json:"app_base_url"`
	LogBackend                        string         `json:"log_backend"`
	LogLevel                          string         `json:"log_level"`
}

// parseJSON overlays values from the file named by -c/-config. Keys missing
// from the file leave the current value untouched.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return err
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	setString(&config.RedisPrefix, c.RedisPrefix)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RefreshSecretKey, c.RefreshSecretKey)
	if c.AccessTokenValidityDuration.Duration > 0 {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration.Duration > 0 {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.VerificationTokenValidityDuration.Duration > 0 {
		config.VerificationTokenValidityDuration = c.VerificationTokenValidityDuration.Duration
	}
	if c.ResetTokenValidityDuration.Duration > 0 {
		config.ResetTokenValidityDuration = c.ResetTokenValidityDuration.Duration
	}
	if c.ResendVerificationInterval.Duration > 0 {
		config.ResendVerificationInterval = c.ResendVerificationInterval.Duration
	}
	setString(&config.AppBaseURL, c.AppBaseURL)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.LogLevel, c.LogLevel)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
