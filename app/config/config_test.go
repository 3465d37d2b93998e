package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadYAML(t *testing.T, content string) (*Config, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	setDefaults()
	return decode()
}

func TestDefaultsApply(t *testing.T) {
	cfg, err := loadYAML(t, `
webhook:
  api_keys: ["k1", "k2"]
`)
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Webhook.APIKeys)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "memory", cfg.RateLimit.Store)
	assert.True(t, cfg.Reconcile.InferFirstFrame)
	assert.False(t, cfg.Reconcile.AtomicWrites)
	assert.Equal(t, "Generation failed", cfg.Reconcile.DefaultErrorMessage)
	assert.Equal(t, 2*time.Hour, cfg.Sweeper.StaleAfter)
}

func TestDurationsAndOverrides(t *testing.T) {
	cfg, err := loadYAML(t, `
webhook:
  api_keys: ["k1"]
rate_limit:
  limit: 10
  window: 30s
  store: redis
redis:
  addr: redis:6379
reconcile:
  atomic_writes: true
`)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.RateLimit.Limit)
	assert.Equal(t, 30*time.Second, cfg.RateLimit.Window)
	assert.Equal(t, "redis", cfg.RateLimit.Store)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Reconcile.AtomicWrites)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no api keys", `server: {port: "5000"}`},
		{"postgres without dsn", "webhook: {api_keys: [k]}\ndatabase: {driver: postgres}"},
		{"unknown driver", "webhook: {api_keys: [k]}\ndatabase: {driver: oracle}"},
		{"bad store", "webhook: {api_keys: [k]}\nrate_limit: {store: disk}"},
		{"zero limit", "webhook: {api_keys: [k]}\nrate_limit: {limit: 0}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadYAML(t, tt.yaml)
			assert.Error(t, err)
		})
	}
}
