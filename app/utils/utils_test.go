package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyAPIKey(t *testing.T) {
	hash, err := HashAPIKey("s3cret")
	require.NoError(t, err)

	assert.True(t, IsBcryptHash(hash))
	assert.True(t, VerifyAPIKey("s3cret", hash))
	assert.False(t, VerifyAPIKey("other", hash))
	assert.False(t, IsBcryptHash("s3cret"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "198.51.100.4, 10.0.0.1"}, "10.0.0.2:4000", "198.51.100.4"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.5"}, "10.0.0.2:4000", "198.51.100.5"},
		{"cloudflare", map[string]string{"CF-Connecting-IP": "198.51.100.6"}, "10.0.0.2:4000", "198.51.100.6"},
		{"remote addr", nil, "192.0.2.9:5123", "192.0.2.9"},
		{"empty forwarded falls through", map[string]string{"X-Forwarded-For": " "}, "192.0.2.9:5123", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
