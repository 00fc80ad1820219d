package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/domain"
)

func TestManager_GenerateUnknownStrategyErrors(t *testing.T) {
	m := NewManager()
	_, err := m.Generate("does-not-exist", Input{})
	assert.Error(t, err)
}

func TestManager_GenerateDispatchesByName(t *testing.T) {
	m := NewManager()
	sig, err := m.Generate("ml", Input{Bars: baseBars(), EnsembleProbability: 0.8})
	require.NoError(t, err)
	assert.Equal(t, "ml", sig.Strategy)
}

func TestAdaptiveElite_RoutesStrongTrendToMomentum(t *testing.T) {
	a := NewAdaptiveElite()
	sig, err := a.Generate(Input{
		Bars: []domain.OHLCVBar{{Close: 100}},
		Features: domain.FeatureRow{
			"macd_hist": 1.2, "adx_14": 30, "ema_12": 102, "ema_26": 98, "atr_14": 1,
		},
		Regime: domain.RegimeStrongTrend,
	})
	require.NoError(t, err)
	assert.Equal(t, "adaptive_elite:momentum", sig.Strategy)
}

func TestAdaptiveElite_RoutesRangingToMeanReversion(t *testing.T) {
	a := NewAdaptiveElite()
	sig, err := a.Generate(Input{
		Bars:     []domain.OHLCVBar{{Close: 95}},
		Features: domain.FeatureRow{"rsi_14": 25, "bb_lower": 96, "bb_upper": 110, "atr_14": 1},
		Regime:   domain.RegimeRanging,
	})
	require.NoError(t, err)
	assert.Equal(t, "adaptive_elite:mean_reversion", sig.Strategy)
}

func TestAdaptiveElite_RoutesWeakTrendToML(t *testing.T) {
	a := NewAdaptiveElite()
	sig, err := a.Generate(Input{
		Bars: baseBars(), EnsembleProbability: 0.8, Regime: domain.RegimeWeakTrend,
	})
	require.NoError(t, err)
	assert.Equal(t, "adaptive_elite:ml", sig.Strategy)
}
