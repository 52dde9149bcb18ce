package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacHex(t *testing.T, saltHex, pw string) string {
	t.Helper()
	salt, err := hex.DecodeString(saltHex)
	require.NoError(t, err)
	mac := hmac.New(sha256.New, salt)
	mac.Write([]byte(pw))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestValidEmail(t *testing.T) {
	good := []string{"a@b.com", "first.last+tag@sub.example.org", "x_y@d-o.io"}
	bad := []string{"", "a", "a@", "@b.com", "a@b", "a@.com", "a@b.", "a b@c.com", "<a@b.com>", "A <a@b.com>"}

	for _, e := range good {
		assert.True(t, validEmail(e), e)
	}
	for _, e := range bad {
		assert.False(t, validEmail(e), e)
	}
}

func TestPasswordLenCountsRunes(t *testing.T) {
	assert.Equal(t, 6, passwordLen("пароль"))
	assert.Equal(t, 0, passwordLen(""))
}
