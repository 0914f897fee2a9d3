package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("REWARDS_SCOPE_ID", "0xabc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://fullnode.testnet.sui.io:443", cfg.RPCEndpoint)
	assert.Equal(t, "0xabc", cfg.ScopeID)
	assert.Equal(t, 10*time.Second, cfg.RefreshInterval)
	assert.Equal(t, 100, cfg.FetchLimit)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.RetryAttempts)
	assert.Equal(t, 10, cfg.LeaderboardLimit)
	assert.True(t, cfg.BaseReward.Equal(decimal.RequireFromString("0.1")))
	assert.True(t, cfg.TokenRate.Equal(decimal.RequireFromString("0.0001")))
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REWARDS_SCOPE_ID", "0xabc")
	t.Setenv("REWARDS_REFRESH_INTERVAL", "1m")
	t.Setenv("REWARDS_TOKEN_RATE", "0.0002")
	t.Setenv("REWARDS_FETCH_LIMIT", "50")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 50, cfg.FetchLimit)
	assert.True(t, cfg.TokenRate.Equal(decimal.RequireFromString("0.0002")))
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("REWARDS_FETCH_LIMIT", "lots")

	_, err := Load()
	assert.Error(t, err)
}

func TestBindFlags_OverrideEnv(t *testing.T) {
	t.Setenv("REWARDS_SCOPE_ID", "0xenv")
	t.Setenv("REWARDS_ACTOR", "0xalice")

	cfg, err := Load()
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	BindFlags(fs, cfg)
	require.NoError(t, fs.Parse([]string{"--scope-id", "0xflag", "--base-reward", "0.5", "--log-format=json"}))

	assert.Equal(t, "0xflag", cfg.ScopeID)
	assert.Equal(t, "0xalice", cfg.Actor, "unset flags keep the env value")
	assert.True(t, cfg.BaseReward.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "json", cfg.LogFormat)

	assert.Error(t, fs.Parse([]string{"--token-rate", "abc"}))
}

func TestValidate(t *testing.T) {
	t.Setenv("REWARDS_SCOPE_ID", "0xabc")
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing scope", func(c *Config) { c.ScopeID = "" }, "scope id is required"},
		{"bad rpc scheme", func(c *Config) { c.RPCEndpoint = "ftp://node" }, "rpc endpoint"},
		{"bad ws scheme", func(c *Config) { c.WSEndpoint = "https://node" }, "ws endpoint"},
		{"zero interval", func(c *Config) { c.RefreshInterval = 0 }, "refresh interval"},
		{"fetch limit too large", func(c *Config) { c.FetchLimit = MaxFetchLimit + 1 }, "fetch limit"},
		{"negative retries", func(c *Config) { c.RetryAttempts = -1 }, "retry attempts"},
		{"zero leaderboard", func(c *Config) { c.LeaderboardLimit = 0 }, "leaderboard limit"},
		{"negative rate", func(c *Config) { c.TokenRate = decimal.RequireFromString("-1") }, "token rate"},
		{"rate too precise", func(c *Config) { c.TokenRate = decimal.RequireFromString("0.00005") }, "token rate must have at most 4 decimal places"},
		{"reward too precise", func(c *Config) { c.BaseReward = decimal.RequireFromString("0.12345") }, "base reward must have at most 4 decimal places"},
		{"two archives", func(c *Config) { c.PostgresDSN, c.ClickhouseDSN = "postgres://x", "clickhouse://y" }, "at most one archive"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "log format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_TrailingZerosAreNotPrecision(t *testing.T) {
	t.Setenv(EnvPrefix+"SCOPE_ID", "0xabc")
	cfg, err := Load()
	require.NoError(t, err)
	cfg.TokenRate = decimal.RequireFromString("0.000100")
	cfg.BaseReward = decimal.RequireFromString("0.10000")
	assert.NoError(t, cfg.Validate())
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scope id")
	assert.Contains(t, err.Error(), "fetch limit")
	assert.Contains(t, err.Error(), "log format")
}
