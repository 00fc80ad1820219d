// Package config loads the trading core's configuration.
//
// Configuration is layered:
//  1. configs/trading_config.yaml, parsed with spf13/viper into a closed
//     struct — unknown keys are a load-time error (spec §9).
//  2. Environment variables (.env via joho/godotenv, then os.Getenv),
//     which override broker credentials, the data directory and the log
//     level only; credentials and the data directory are operational
//     secrets that don't belong in a checked-in YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// CircuitBreakerConfig tunes AutoTrader's circuit breaker (spec §4.10, §6).
type CircuitBreakerConfig struct {
	MaxConsecutiveLosses       int     `mapstructure:"max_consecutive_losses"`
	DailyLossLimitPct          float64 `mapstructure:"daily_loss_limit_pct"`
	DailyLossLimitAmount       float64 `mapstructure:"daily_loss_limit_amount"`
	CooldownMinutes            int     `mapstructure:"cooldown_minutes"`
	MinAccuracy                float64 `mapstructure:"min_accuracy"`
	CooldownHoursAfterTickerLoss float64 `mapstructure:"cooldown_hours_after_ticker_loss"`
}

// ThresholdConfig tunes signal-execution confidence gates (spec §6).
type ThresholdConfig struct {
	ConfidenceThreshold         float64 `mapstructure:"confidence_threshold"`
	ConfidenceThresholdRanging  float64 `mapstructure:"confidence_threshold_ranging"`
	ConfidenceThresholdTrending float64 `mapstructure:"confidence_threshold_trending"`
	UseRegimeThresholds         bool    `mapstructure:"use_regime_thresholds"`
	UseAdaptiveThreshold        bool    `mapstructure:"use_adaptive_threshold"`
	AdaptiveThresholdFloor      float64 `mapstructure:"adaptive_threshold_floor"`
}

// RiskConfig tunes the TradePlanner and RiskManager (spec §4.7, §4.8, §6).
type RiskConfig struct {
	MaxRiskPerTrade     float64 `mapstructure:"max_risk_per_trade"`
	MaxPositionSize     float64 `mapstructure:"max_position_size"`
	MaxDailyRisk        float64 `mapstructure:"max_daily_risk"`
	MaxPortfolioRisk    float64 `mapstructure:"max_portfolio_risk"`
	MaxOpenPositions    int     `mapstructure:"max_open_positions"`
	MinRiskRewardRatio  float64 `mapstructure:"min_risk_reward_ratio"`
}

// SignalSource selects which signal pipeline AutoTrader drives.
type SignalSource string

const (
	SignalSourceElite         SignalSource = "elite"
	SignalSourceQuant         SignalSource = "quant"
	SignalSourceQuantEnsemble SignalSource = "quant_ensemble"
)

// EnsembleMethod selects the EnsembleManager combination method.
type EnsembleMethod string

const (
	EnsembleWeightedAverage EnsembleMethod = "weighted_average"
	EnsembleVoting          EnsembleMethod = "voting"
)

// Config is the closed set of recognized options (spec §6). Unknown YAML
// keys fail to load via viper.UnmarshalExact.
type Config struct {
	Risk                RiskConfig           `mapstructure:"risk"`
	Thresholds          ThresholdConfig      `mapstructure:"thresholds"`
	CircuitBreaker      CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	SignalSource        SignalSource         `mapstructure:"signal_source"`
	QuantEnsembleMethod EnsembleMethod       `mapstructure:"quant_ensemble_method"`

	// Operational settings, overridable by env vars.
	DataDir      string `mapstructure:"data_dir"`
	LogLevel     string `mapstructure:"log_level"`
	BrokerAPIKey string `mapstructure:"-"`
	BrokerSecret string `mapstructure:"-"`

	// MarketHolidays lists NSE/BSE exchange holidays as "2006-01-02"
	// dates, consulted by the scheduler's MarketHoursManager.
	MarketHolidays []string `mapstructure:"market_holidays"`
}

// Defaults returns the configuration defaults named throughout spec §6.
func Defaults() Config {
	return Config{
		Risk: RiskConfig{
			MaxRiskPerTrade:    0.02,
			MaxPositionSize:    0.20,
			MaxDailyRisk:       0.05,
			MaxPortfolioRisk:   0.30,
			MaxOpenPositions:   10,
			MinRiskRewardRatio: 1.5,
		},
		Thresholds: ThresholdConfig{
			ConfidenceThreshold:         0.65,
			ConfidenceThresholdRanging:  0.70,
			ConfidenceThresholdTrending: 0.60,
			UseRegimeThresholds:         true,
			UseAdaptiveThreshold:        true,
			AdaptiveThresholdFloor:      0.75,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxConsecutiveLosses:         5,
			DailyLossLimitPct:            0.10,
			DailyLossLimitAmount:         0,
			CooldownMinutes:              60,
			MinAccuracy:                  0.45,
			CooldownHoursAfterTickerLoss: 24,
		},
		SignalSource:        SignalSourceElite,
		QuantEnsembleMethod: EnsembleWeightedAverage,
		DataDir:             "./data",
		LogLevel:            "info",
	}
}

// Load reads configuration from configPath (YAML), falling back to
// Defaults() for any section the file omits, then applies environment
// variable overrides for credentials and the data directory.
//
// Mirrors the teacher's layering in internal/config/config.go: load
// file/env first, apply secret overrides second, validate last.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v := viper.New()
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			if err := v.UnmarshalExact(&cfg); err != nil {
				return nil, fmt.Errorf("config file %s has unrecognized keys: %w", configPath, err)
			}
		}
	}

	cfg.BrokerAPIKey = getEnv("BROKER_API_KEY", cfg.BrokerAPIKey)
	cfg.BrokerSecret = getEnv("BROKER_API_SECRET", cfg.BrokerSecret)
	if dir := getEnv("TRADER_DATA_DIR", ""); dir != "" {
		cfg.DataDir = dir
	}
	if lvl := getEnv("LOG_LEVEL", ""); lvl != "" {
		cfg.LogLevel = lvl
	}

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	cfg.DataDir = absDataDir
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that must hold for the core to run safely.
func (c *Config) Validate() error {
	if c.Risk.MaxRiskPerTrade <= 0 || c.Risk.MaxRiskPerTrade > 1 {
		return fmt.Errorf("configuration error: max_risk_per_trade must be in (0,1], got %v", c.Risk.MaxRiskPerTrade)
	}
	if c.Risk.MaxOpenPositions <= 0 {
		return fmt.Errorf("configuration error: max_open_positions must be positive, got %d", c.Risk.MaxOpenPositions)
	}
	switch c.SignalSource {
	case SignalSourceElite, SignalSourceQuant, SignalSourceQuantEnsemble:
	default:
		return fmt.Errorf("configuration error: unrecognized signal_source %q", c.SignalSource)
	}
	switch c.QuantEnsembleMethod {
	case EnsembleWeightedAverage, EnsembleVoting:
	default:
		return fmt.Errorf("configuration error: unrecognized quant_ensemble_method %q", c.QuantEnsembleMethod)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
