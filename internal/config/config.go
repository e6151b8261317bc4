// Package config provides configuration management for the trading engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Trading     TradingConfig   `mapstructure:"trading"`
	Valuation   ValuationConfig `mapstructure:"valuation"`
	Sizing      SizingConfig    `mapstructure:"sizing"`
	Sell        SellConfig      `mapstructure:"sell"`
	Orders      OrdersConfig    `mapstructure:"orders"`
	Credentials Credentials     `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds run-level trading configuration.
type TradingConfig struct {
	Symbols     []string `mapstructure:"symbols"`
	BuyEnabled  bool     `mapstructure:"buy_enabled"`
	SellEnabled bool     `mapstructure:"sell_enabled"`
	AtOpen      bool     `mapstructure:"at_open"` // compare against previous open instead of previous close
	Paper       bool     `mapstructure:"paper"`
}

// ValuationConfig holds price synthesis and indicator configuration.
type ValuationConfig struct {
	LimitBuffer        float64 `mapstructure:"limit_buffer"`
	SpreadLimit        float64 `mapstructure:"spread_limit"`
	PriceVarianceLimit float64 `mapstructure:"price_variance_limit"`
	RSIPeriod          int     `mapstructure:"rsi_period"`
	RSIUseOpen         bool    `mapstructure:"rsi_use_open"` // open-to-open deltas instead of close-to-close
	BarHistoryDays     int     `mapstructure:"bar_history_days"`
}

// SizingConfig holds position sizing configuration.
type SizingConfig struct {
	EnduranceDays          int     `mapstructure:"endurance_days"`
	AllowMarginTrading     bool    `mapstructure:"allow_margin_trading"`
	ActiveMarginPercentage float64 `mapstructure:"active_margin_percentage"`
}

// SellConfig holds sell-eligibility configuration.
type SellConfig struct {
	RSILower              float64 `mapstructure:"rsi_lower"`
	RSIUpper              float64 `mapstructure:"rsi_upper"`
	SellSideMarginMinimum float64 `mapstructure:"sell_side_margin_minimum"`
	MarginInterestRate    float64 `mapstructure:"margin_interest_rate"` // annual
	DayTradeLimit         int     `mapstructure:"day_trade_limit"`
}

// OrdersConfig holds order submission and settlement configuration.
type OrdersConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	WaitForLiveData    time.Duration `mapstructure:"wait_for_live_data"`
	FillPollIterations int           `mapstructure:"fill_poll_iterations"`
	FillPollInterval   time.Duration `mapstructure:"fill_poll_interval"`
}

// Credentials holds API credentials.
type Credentials struct {
	Alpaca AlpacaCredentials `mapstructure:"alpaca"`
}

// AlpacaCredentials holds Alpaca API credentials.
type AlpacaCredentials struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	BaseURL   string `mapstructure:"base_url"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/alpaca-trader"
	}
	return filepath.Join(home, ".config", "alpaca-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		// No config file: run on defaults plus env overrides.
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.buy_enabled", true)
	v.SetDefault("trading.sell_enabled", true)
	v.SetDefault("trading.paper", true)

	v.SetDefault("valuation.limit_buffer", 0.001)
	v.SetDefault("valuation.spread_limit", 0.01)
	v.SetDefault("valuation.price_variance_limit", 0.01)
	v.SetDefault("valuation.rsi_period", 14)
	v.SetDefault("valuation.bar_history_days", 30)

	v.SetDefault("sizing.endurance_days", 5)
	v.SetDefault("sizing.allow_margin_trading", false)
	v.SetDefault("sizing.active_margin_percentage", 0.0)

	v.SetDefault("sell.rsi_lower", 30.0)
	v.SetDefault("sell.rsi_upper", 70.0)
	v.SetDefault("sell.sell_side_margin_minimum", 0.01)
	v.SetDefault("sell.margin_interest_rate", 0.0575)
	v.SetDefault("sell.day_trade_limit", 3)

	v.SetDefault("orders.enabled", false)
	v.SetDefault("orders.wait_for_live_data", 5*time.Second)
	v.SetDefault("orders.fill_poll_iterations", 10)
	v.SetDefault("orders.fill_poll_interval", 3*time.Second)
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil // credentials may come from the environment
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Credentials.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Credentials.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Credentials.Alpaca.BaseURL = v
	}
	if v := os.Getenv("TRADER_PAPER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.Paper = b
		}
	}
	if v := os.Getenv("TRADER_ORDERS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Orders.Enabled = b
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols must list at least one symbol")
	}
	if c.Valuation.LimitBuffer < 0 {
		return fmt.Errorf("valuation.limit_buffer must be non-negative")
	}
	if c.Valuation.SpreadLimit <= 0 {
		return fmt.Errorf("valuation.spread_limit must be positive")
	}
	if c.Valuation.PriceVarianceLimit <= 0 {
		return fmt.Errorf("valuation.price_variance_limit must be positive")
	}
	if c.Valuation.RSIPeriod <= 0 {
		return fmt.Errorf("valuation.rsi_period must be positive")
	}
	if c.Sizing.EnduranceDays <= 0 {
		return fmt.Errorf("sizing.endurance_days must be positive")
	}
	if c.Sizing.ActiveMarginPercentage < 0 {
		return fmt.Errorf("sizing.active_margin_percentage must be non-negative")
	}
	if c.Sell.RSIUpper < c.Sell.RSILower {
		return fmt.Errorf("sell.rsi_upper must not be below sell.rsi_lower")
	}
	if c.Sell.RSILower < 0 || c.Sell.RSIUpper > 100 {
		return fmt.Errorf("rsi thresholds must be within [0, 100]")
	}
	if c.Sell.MarginInterestRate < 0 {
		return fmt.Errorf("sell.margin_interest_rate must be non-negative")
	}
	if c.Orders.FillPollIterations <= 0 {
		return fmt.Errorf("orders.fill_poll_iterations must be positive")
	}
	if c.Orders.FillPollInterval <= 0 {
		return fmt.Errorf("orders.fill_poll_interval must be positive")
	}
	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Paper
}
