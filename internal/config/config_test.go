package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults_PassesValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBadRiskPerTrade(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.MaxRiskPerTrade = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_risk_per_trade")
}

func TestValidate_RejectsZeroOpenPositions(t *testing.T) {
	cfg := Defaults()
	cfg.Risk.MaxOpenPositions = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_open_positions")
}

func TestValidate_RejectsUnknownSignalSource(t *testing.T) {
	cfg := Defaults()
	cfg.SignalSource = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal_source")
}

func TestValidate_RejectsUnknownEnsembleMethod(t *testing.T) {
	cfg := Defaults()
	cfg.QuantEnsembleMethod = "bogus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quant_ensemble_method")
}

func TestLoad_RejectsUnknownYAMLKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trading_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("unknown_top_level_key: 1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized keys")
}

func TestLoad_AppliesEnvOverridesForSecretsAndDataDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BROKER_API_KEY", "secret-key")
	t.Setenv("BROKER_API_SECRET", "secret-val")
	t.Setenv("TRADER_DATA_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret-key", cfg.BrokerAPIKey)
	assert.Equal(t, "secret-val", cfg.BrokerSecret)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, cfg.DataDir)

	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trading_config.yaml")
	yaml := `
risk:
  max_risk_per_trade: 0.01
  max_position_size: 0.2
  max_daily_risk: 0.05
  max_portfolio_risk: 0.3
  max_open_positions: 5
  min_risk_reward_ratio: 1.5
thresholds:
  confidence_threshold: 0.8
  confidence_threshold_ranging: 0.7
  confidence_threshold_trending: 0.6
  use_regime_thresholds: true
  use_adaptive_threshold: false
  adaptive_threshold_floor: 0.75
circuit_breaker:
  max_consecutive_losses: 3
  daily_loss_limit_pct: 0.1
  daily_loss_limit_amount: 0
  cooldown_minutes: 30
  min_accuracy: 0.5
  cooldown_hours_after_ticker_loss: 12
signal_source: quant
quant_ensemble_method: voting
data_dir: ` + dir + `
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.01, cfg.Risk.MaxRiskPerTrade)
	assert.Equal(t, 0.8, cfg.Thresholds.ConfidenceThreshold)
	assert.Equal(t, SignalSourceQuant, cfg.SignalSource)
	assert.Equal(t, EnsembleVoting, cfg.QuantEnsembleMethod)
	assert.Equal(t, "debug", cfg.LogLevel)
}
