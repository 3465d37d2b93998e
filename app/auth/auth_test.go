package auth

import (
	"testing"

	"ugc-forge/app/config"
	"ugc-forge/app/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeySetAcceptsEveryConfiguredKey(t *testing.T) {
	hashed, err := utils.HashAPIKey("rotated-key")
	require.NoError(t, err)

	keys := NewKeySet([]string{"current-key", "", hashed})
	assert.Equal(t, 2, keys.Len())

	assert.True(t, keys.Valid("current-key"))
	assert.True(t, keys.Valid("rotated-key"))
	assert.False(t, keys.Valid("current"))
	assert.False(t, keys.Valid(""))
}

func TestKeySetRejectsKeysOfOtherLengths(t *testing.T) {
	keys := NewKeySet([]string{"abcdef", "0123456789abcdef"})

	for _, presented := range []string{"a", "abcde", "abcdefg", "0123456789abcde", "0123456789abcdef0", "abcdef "} {
		assert.False(t, keys.Valid(presented), presented)
	}
	assert.True(t, keys.Valid("abcdef"))
	assert.True(t, keys.Valid("0123456789abcdef"))
}

func TestKeySetReplace(t *testing.T) {
	keys := NewKeySet([]string{"old"})
	keys.Replace([]string{"new"})

	assert.False(t, keys.Valid("old"))
	assert.True(t, keys.Valid("new"))
}

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: 1, Issuer: "ugc-forge"})

	token, err := svc.GenerateToken("user-1")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)

	other := NewJWTService(config.JWTConfig{Secret: "another-secret", ExpireTime: 1, Issuer: "ugc-forge"})
	_, err = other.ValidateToken(token)
	assert.Error(t, err)

	_, err = svc.GenerateToken("")
	assert.Error(t, err)
}

func TestJWTRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: -1, Issuer: "ugc-forge"})

	token, err := svc.GenerateToken("user-1")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}
