// Package config loads runtime settings from REWARDS_* environment variables,
// with command-line flags taking precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	flag "github.com/spf13/pflag"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "REWARDS_"

// MaxFetchLimit caps the number of events requested per kind and cycle.
const MaxFetchLimit = 1000

// RewardPlaces is the finest precision accepted for reward amounts and rates,
// matching the precision analytics are reported at.
const RewardPlaces = 4

// Config holds every runtime setting shared by the binaries.
type Config struct {
	// Ledger
	RPCEndpoint string `env:"RPC_ENDPOINT" envDefault:"https://fullnode.testnet.sui.io:443"`
	WSEndpoint  string `env:"WS_ENDPOINT"`
	ScopeID     string `env:"SCOPE_ID"`
	Actor       string `env:"ACTOR"`

	// Refresh
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"10s"`
	FetchLimit      int           `env:"FETCH_LIMIT" envDefault:"100"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	RetryAttempts   int           `env:"RETRY_ATTEMPTS" envDefault:"0"`

	// Analytics
	LeaderboardLimit int             `env:"LEADERBOARD_LIMIT" envDefault:"10"`
	BaseReward       decimal.Decimal `env:"BASE_REWARD" envDefault:"0.1"`
	TokenRate        decimal.Decimal `env:"TOKEN_RATE" envDefault:"0.0001"`

	// Outputs
	MetricsAddr   string `env:"METRICS_ADDR" envDefault:":9090"`
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load parses the environment into a Config with defaults applied.
// It does not validate; call Validate after flags are bound and parsed.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers a flag for every setting on fs. The current values of cfg
// become the flag defaults, so flags override the environment.
func BindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "ledger JSON-RPC endpoint")
	fs.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "ledger websocket endpoint for push triggers (optional)")
	fs.StringVar(&cfg.ScopeID, "scope-id", cfg.ScopeID, "package id that emits reward events (required)")
	fs.StringVar(&cfg.Actor, "actor", cfg.Actor, "actor address to report on (default: all actors)")

	fs.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "interval between refresh cycles")
	fs.IntVar(&cfg.FetchLimit, "fetch-limit", cfg.FetchLimit, "events fetched per kind and cycle")
	fs.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "timeout for one refresh cycle")
	fs.IntVar(&cfg.RetryAttempts, "retry-attempts", cfg.RetryAttempts, "retries after a failed refresh cycle")

	fs.IntVar(&cfg.LeaderboardLimit, "leaderboard-limit", cfg.LeaderboardLimit, "number of leaderboard entries")
	fs.Var((*decimalValue)(&cfg.BaseReward), "base-reward", "reward per contribution")
	fs.Var((*decimalValue)(&cfg.TokenRate), "token-rate", "reward per consumed token")

	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "HTTP listen address for the API and /metrics (empty disables)")
	fs.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL archive DSN (optional)")
	fs.StringVar(&cfg.ClickhouseDSN, "clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse archive DSN (optional)")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ScopeID == "" {
		errs = append(errs, errors.New("scope id is required (REWARDS_SCOPE_ID or --scope-id)"))
	}
	if err := checkURL(c.RPCEndpoint, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("rpc endpoint: %w", err))
	}
	if c.WSEndpoint != "" {
		if err := checkURL(c.WSEndpoint, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Errorf("ws endpoint: %w", err))
		}
	}
	if c.RefreshInterval <= 0 {
		errs = append(errs, fmt.Errorf("refresh interval must be positive, got %s", c.RefreshInterval))
	}
	if c.FetchLimit <= 0 || c.FetchLimit > MaxFetchLimit {
		errs = append(errs, fmt.Errorf("fetch limit must be in 1..%d, got %d", MaxFetchLimit, c.FetchLimit))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry attempts must not be negative, got %d", c.RetryAttempts))
	}
	if c.LeaderboardLimit <= 0 {
		errs = append(errs, fmt.Errorf("leaderboard limit must be positive, got %d", c.LeaderboardLimit))
	}
	if c.BaseReward.IsNegative() {
		errs = append(errs, fmt.Errorf("base reward must not be negative, got %s", c.BaseReward))
	}
	if c.TokenRate.IsNegative() {
		errs = append(errs, fmt.Errorf("token rate must not be negative, got %s", c.TokenRate))
	}
	if !c.BaseReward.Equal(c.BaseReward.Truncate(RewardPlaces)) {
		errs = append(errs, fmt.Errorf("base reward must have at most %d decimal places, got %s", RewardPlaces, c.BaseReward))
	}
	if !c.TokenRate.Equal(c.TokenRate.Truncate(RewardPlaces)) {
		errs = append(errs, fmt.Errorf("token rate must have at most %d decimal places, got %s", RewardPlaces, c.TokenRate))
	}
	if c.PostgresDSN != "" && c.ClickhouseDSN != "" {
		errs = append(errs, errors.New("configure at most one archive backend"))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be an absolute %v URL", raw, schemes)
}

// decimalValue adapts decimal.Decimal to flag.Value.
type decimalValue decimal.Decimal

func (d *decimalValue) String() string {
	return decimal.Decimal(*d).String()
}

func (d *decimalValue) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	*d = decimalValue(v)
	return nil
}

func (d *decimalValue) Type() string {
	return "decimal"
}
