// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Trading  TradingConfig  `yaml:"trading"`
	Strategy StrategyConfig `yaml:"strategy"`
	Feed     FeedConfig     `yaml:"feed"`
	DB       DBConfig       `yaml:"db"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
	Debug    bool           `yaml:"debug"`
}

type ExchangeConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	Testnet   bool   `yaml:"testnet"`
}

type TradingConfig struct {
	Symbol        string  `yaml:"symbol"`
	Interval      string  `yaml:"interval"`
	Quantity      float64 `yaml:"quantity"`
	WindowSize    int     `yaml:"window_size"`
	BackfillLimit int     `yaml:"backfill_limit"`
}

type StrategyConfig struct {
	FastPeriod          int           `yaml:"fast_period"`
	SlowPeriod          int           `yaml:"slow_period"`
	VolumePeriod        int           `yaml:"volume_period"`
	RSIPeriod           int           `yaml:"rsi_period"`
	RSIOverbought       float64       `yaml:"rsi_overbought"`
	MinVolumeFactor     float64       `yaml:"min_volume_factor"`
	MinTrendStrength    float64       `yaml:"min_trend_strength"`
	StopLossPercent     float64       `yaml:"stop_loss_percent"`
	TakeProfitPercent   float64       `yaml:"take_profit_percent"`
	TrailingStopPercent float64       `yaml:"trailing_stop_percent"`
	TradeCooldown       time.Duration `yaml:"trade_cooldown"`
}

type FeedConfig struct {
	StreamURL         string        `yaml:"stream_url"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	WatchdogInterval  time.Duration `yaml:"watchdog_interval"`
	SilenceThreshold  time.Duration `yaml:"silence_threshold"`
	PricePollInterval time.Duration `yaml:"price_poll_interval"`
}

type DBConfig struct {
	ConnStr string `yaml:"conn_str"`
	MaxOpen int    `yaml:"max_open"`
	MaxIdle int    `yaml:"max_idle"`
}

type TelegramConfig struct {
	Token   string        `yaml:"token"`
	ChatID  string        `yaml:"chat_id"`
	Retries int           `yaml:"retries"`
	Delay   time.Duration `yaml:"delay"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	AuthToken  string `yaml:"auth_token"`
}

// Default returns the configuration used when a field is absent from the
// YAML file.
func Default() Config {
	return Config{
		Trading: TradingConfig{
			Symbol:        "BTCUSDT",
			Interval:      "15m",
			Quantity:      0.01,
			WindowSize:    100,
			BackfillLimit: 100,
		},
		Strategy: StrategyConfig{
			FastPeriod:          9,
			SlowPeriod:          21,
			VolumePeriod:        20,
			RSIPeriod:           14,
			RSIOverbought:       70,
			MinVolumeFactor:     1.5,
			MinTrendStrength:    0.0003,
			StopLossPercent:     0.02,
			TakeProfitPercent:   0.04,
			TrailingStopPercent: 0.015,
			TradeCooldown:       30 * time.Second,
		},
		Feed: FeedConfig{
			StreamURL:         "wss://stream.binance.com:9443/ws",
			ReconnectDelay:    5 * time.Second,
			WatchdogInterval:  15 * time.Second,
			SilenceThreshold:  60 * time.Second,
			PricePollInterval: 5 * time.Second,
		},
		DB: DBConfig{
			MaxOpen: 10,
			MaxIdle: 5,
		},
		Telegram: TelegramConfig{
			Retries: 3,
			Delay:   5 * time.Second,
		},
		API: APIConfig{
			ListenAddr: ":3000",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides for secrets.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("BINANCE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("BINANCE_SECRET_KEY"); v != "" {
		cfg.Exchange.SecretKey = v
	}
	if v := os.Getenv("DB_CONN_STR"); v != "" {
		cfg.DB.ConnStr = v
	}
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Telegram.ChatID = v
	}
	if v := os.Getenv("API_AUTH_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as silent
// misbehavior at runtime.
func (c Config) Validate() error {
	if c.Trading.Symbol == "" {
		return errors.New("trading.symbol is required")
	}
	if c.Trading.Interval == "" {
		return errors.New("trading.interval is required")
	}
	if c.Trading.Quantity <= 0 {
		return errors.New("trading.quantity must be positive")
	}
	if c.Trading.WindowSize <= 0 {
		return errors.New("trading.window_size must be positive")
	}
	if c.Strategy.FastPeriod <= 0 || c.Strategy.SlowPeriod <= 0 ||
		c.Strategy.VolumePeriod <= 0 || c.Strategy.RSIPeriod <= 0 {
		return errors.New("strategy periods must be positive")
	}
	if c.Strategy.FastPeriod >= c.Strategy.SlowPeriod {
		return errors.New("strategy.fast_period must be less than slow_period")
	}
	if c.Strategy.RSIOverbought <= 50 || c.Strategy.RSIOverbought > 100 {
		return errors.New("strategy.rsi_overbought must be in (50, 100]")
	}
	if c.Feed.StreamURL == "" {
		return errors.New("feed.stream_url is required")
	}
	if c.Feed.ReconnectDelay <= 0 || c.Feed.WatchdogInterval <= 0 || c.Feed.SilenceThreshold <= 0 {
		return errors.New("feed timings must be positive")
	}
	return nil
}
