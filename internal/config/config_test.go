package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "15m", cfg.Trading.Interval)
	assert.Equal(t, 100, cfg.Trading.WindowSize)
	assert.Equal(t, 5*time.Second, cfg.Feed.ReconnectDelay)
}

func TestLoadOverridesFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
trading:
  symbol: ETHUSDT
  interval: 5m
strategy:
  rsi_overbought: 75
feed:
  silence_threshold: 90s
debug: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Trading.Symbol)
	assert.Equal(t, "5m", cfg.Trading.Interval)
	assert.Equal(t, 75.0, cfg.Strategy.RSIOverbought)
	assert.Equal(t, 90*time.Second, cfg.Feed.SilenceThreshold)
	assert.True(t, cfg.Debug)

	// Untouched fields keep their defaults.
	assert.Equal(t, 9, cfg.Strategy.FastPeriod)
	assert.Equal(t, 21, cfg.Strategy.SlowPeriod)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "env-key")
	t.Setenv("TELEGRAM_TOKEN", "env-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Exchange.APIKey)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "missing symbol",
			mutate: func(c *Config) { c.Trading.Symbol = "" },
			errMsg: "trading.symbol",
		},
		{
			name:   "zero quantity",
			mutate: func(c *Config) { c.Trading.Quantity = 0 },
			errMsg: "trading.quantity",
		},
		{
			name:   "fast not below slow",
			mutate: func(c *Config) { c.Strategy.FastPeriod = 21 },
			errMsg: "fast_period",
		},
		{
			name:   "overbought too low",
			mutate: func(c *Config) { c.Strategy.RSIOverbought = 50 },
			errMsg: "rsi_overbought",
		},
		{
			name:   "zero reconnect delay",
			mutate: func(c *Config) { c.Feed.ReconnectDelay = 0 },
			errMsg: "feed timings",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
