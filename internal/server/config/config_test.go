package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, ":8080", c.EndpointAddrHTTP)
	assert.Empty(t, c.DatabaseDSN)
	assert.Empty(t, c.RedisAddr)
	assert.Equal(t, "exposureshield:", c.RedisPrefix)
	assert.Empty(t, c.SecretKey, "secrets must not have a default")
	assert.Empty(t, c.RefreshSecretKey, "secrets must not have a default")
	assert.Equal(t, time.Hour, c.AccessTokenValidityDuration)
	assert.Equal(t, 7*24*time.Hour, c.RefreshTokenValidityDuration)
	assert.Equal(t, 24*time.Hour, c.VerificationTokenValidityDuration)
	assert.Equal(t, time.Hour, c.ResetTokenValidityDuration)
	assert.Equal(t, time.Minute, c.ResendVerificationInterval)
	assert.Equal(t, "slog", c.LogBackend)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"endpoint_addr_http": ":9000",
		"secret_key":         "from-json",
		"redis_addr":         "json-redis:6379",
	})
	t.Setenv(EnvSecretKey, "from-env")
	t.Setenv(EnvAccessTokenTTL, "30s")

	c, err := LoadConfig([]string{"-c", path, "-a", ":9100"})
	require.NoError(t, err)

	assert.Equal(t, ":9100", c.EndpointAddrHTTP, "flag beats json")
	assert.Equal(t, "from-env", c.SecretKey, "env beats json")
	assert.Equal(t, "json-redis:6379", c.RedisAddr, "json beats defaults")
	assert.Equal(t, 30*time.Second, c.AccessTokenValidityDuration, "unset minute flag keeps env value")
}

func TestLoadConfig_BadJSONPath(t *testing.T) {
	_, err := LoadConfig([]string{"-c", "/definitely/missing.json"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json config")
}
