package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nse-trader/core/internal/domain"
)

func baseBars() []domain.OHLCVBar {
	return []domain.OHLCVBar{{Close: 100}, {Close: 101}, {Close: 99}}
}

func TestMLStrategy_CategorizesByProbability(t *testing.T) {
	tests := []struct {
		name  string
		proba float64
		want  domain.SignalType
	}{
		{"strong buy", 0.8, domain.StrongBuy},
		{"buy", 0.6, domain.Buy},
		{"hold", 0.5, domain.Hold},
		{"sell", 0.4, domain.Sell},
		{"strong sell", 0.2, domain.StrongSell},
	}
	s := MLStrategy{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := s.Generate(Input{Bars: baseBars(), EnsembleProbability: tt.proba})
			assert.NoError(t, err)
			assert.Equal(t, tt.want, sig.Type)
		})
	}
}

func TestMeanReversionStrategy_BuysOversoldAtLowerBand(t *testing.T) {
	s := MeanReversionStrategy{}
	sig, err := s.Generate(Input{
		Bars:     []domain.OHLCVBar{{Close: 95}},
		Features: domain.FeatureRow{"rsi_14": 25, "bb_lower": 96, "bb_upper": 110, "atr_14": 1},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.Buy, sig.Type)
}

func TestMeanReversionStrategy_HoldsWithinBands(t *testing.T) {
	s := MeanReversionStrategy{}
	sig, err := s.Generate(Input{
		Bars:     []domain.OHLCVBar{{Close: 100}},
		Features: domain.FeatureRow{"rsi_14": 50, "bb_lower": 90, "bb_upper": 110, "atr_14": 1},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.Hold, sig.Type)
}

func TestMomentumStrategy_BuysOnConfirmedUptrend(t *testing.T) {
	s := MomentumStrategy{}
	sig, err := s.Generate(Input{
		Bars:     []domain.OHLCVBar{{Close: 100}},
		Features: domain.FeatureRow{"macd_hist": 1.2, "adx_14": 30, "ema_12": 102, "ema_26": 98, "atr_14": 1},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.Buy, sig.Type)
	assert.Greater(t, sig.Confidence, 0.0)
}

func TestMomentumStrategy_WeakTrendHolds(t *testing.T) {
	s := MomentumStrategy{}
	sig, err := s.Generate(Input{
		Bars:     []domain.OHLCVBar{{Close: 100}},
		Features: domain.FeatureRow{"macd_hist": 1.2, "adx_14": 10, "ema_12": 102, "ema_26": 98, "atr_14": 1},
	})
	assert.NoError(t, err)
	assert.Equal(t, domain.Hold, sig.Type)
}

func TestAtrLevels_SellSideLevelsInvertAroundEntry(t *testing.T) {
	levels := atrLevels(100, 2, domain.SideSell)
	assert.Equal(t, 100.0, levels.Entry)
	assert.Greater(t, levels.StopLoss, levels.Entry)
	assert.Less(t, levels.Target1, levels.Entry)
	assert.Less(t, levels.Target2, levels.Target1)
}

func TestAtrLevels_ZeroATRFallsBackToPercentOfEntry(t *testing.T) {
	levels := atrLevels(100, 0, domain.SideBuy)
	assert.Less(t, levels.StopLoss, levels.Entry)
	assert.Greater(t, levels.Target1, levels.Entry)
}
