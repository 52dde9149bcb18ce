package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names understood by parseEnv.
const (
	EnvHTTPAddr             = "HTTP_ADDR"
	EnvDatabaseDSN          = "DATABASE_DSN"
	EnvRedisAddr            = "REDIS_ADDR"
	EnvRedisPassword        = "REDIS_PASSWORD"
	EnvRedisDB              = "REDIS_DB"
	EnvRedisPrefix          = "REDIS_PREFIX"
	EnvSecretKey            = "JWT_SECRET"
	EnvRefreshSecretKey     = "JWT_REFRESH_SECRET"
	EnvAccessTokenTTL       = "ACCESS_TOKEN_TTL"
	EnvRefreshTokenTTL      = "REFRESH_TOKEN_TTL"
	EnvVerificationTokenTTL = "VERIFICATION_TOKEN_TTL"
	EnvResetTokenTTL        = "RESET_TOKEN_TTL"
	EnvResendInterval       = "RESEND_VERIFICATION_INTERVAL"
	EnvAppBaseURL           = "APP_BASE_URL"
	EnvLogBackend           = "LOG_BACKEND"
	EnvLogLevel             = "LOG_LEVEL"
)

// parseEnv loads .env (if present, without overriding real variables) and
// overlays every variable that is set.
func parseEnv(config *Config) error {
	_ = godotenv.Load()

	lookupString(EnvHTTPAddr, &config.EndpointAddrHTTP)
	lookupString(EnvDatabaseDSN, &config.DatabaseDSN)
	lookupString(EnvRedisAddr, &config.RedisAddr)
	lookupString(EnvRedisPassword, &config.RedisPassword)
	lookupString(EnvRedisPrefix, &config.RedisPrefix)
	lookupString(EnvSecretKey, &config.SecretKey)
	lookupString(EnvRefreshSecretKey, &config.RefreshSecretKey)
	lookupString(EnvAppBaseURL, &config.AppBaseURL)
	lookupString(EnvLogBackend, &config.LogBackend)
	lookupString(EnvLogLevel, &config.LogLevel)

	if v, ok := os.LookupEnv(EnvRedisDB); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", EnvRedisDB, err)
		}
		config.RedisDB = n
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvAccessTokenTTL, &config.AccessTokenValidityDuration},
		{EnvRefreshTokenTTL, &config.RefreshTokenValidityDuration},
		{EnvVerificationTokenTTL, &config.VerificationTokenValidityDuration},
		{EnvResetTokenTTL, &config.ResetTokenValidityDuration},
		{EnvResendInterval, &config.ResendVerificationInterval},
	}
	for _, d := range durations {
		v, ok := os.LookupEnv(d.key)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	return nil
}

func lookupString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
