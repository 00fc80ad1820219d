package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nse-trader/core/internal/domain"
)

// trendingBars builds a steadily rising series so ADX reads a strong trend.
func trendingBars(n int) []domain.OHLCVBar {
	bars := make([]domain.OHLCVBar, n)
	price := 100.0
	for i := 0; i < n; i++ {
		price += 1.0
		bars[i] = domain.OHLCVBar{
			T: time.Now().Add(time.Duration(i) * time.Hour),
			Open: price - 0.5, High: price + 0.5, Low: price - 1, Close: price, Volume: 1000,
		}
	}
	return bars
}

// choppyBars oscillates within a tight band with no sustained direction.
func choppyBars(n int) []domain.OHLCVBar {
	bars := make([]domain.OHLCVBar, n)
	base := 100.0
	for i := 0; i < n; i++ {
		price := base + math.Sin(float64(i))*0.5
		bars[i] = domain.OHLCVBar{
			T: time.Now().Add(time.Duration(i) * time.Hour),
			Open: price, High: price + 0.3, Low: price - 0.3, Close: price, Volume: 1000,
		}
	}
	return bars
}

func TestDetectRegime_TooFewBarsDefaultsToRanging(t *testing.T) {
	assert.Equal(t, domain.RegimeRanging, DetectRegime(trendingBars(10)))
}

func TestDetectRegime_StrongUptrendIsStrongTrend(t *testing.T) {
	assert.Equal(t, domain.RegimeStrongTrend, DetectRegime(trendingBars(60)))
}

func TestDetectRegime_ChoppyRangeIsNotStrongTrend(t *testing.T) {
	regime := DetectRegime(choppyBars(60))
	assert.NotEqual(t, domain.RegimeStrongTrend, regime)
}

func TestClassifyPhase_TooFewBarsIsNeutral(t *testing.T) {
	assert.Equal(t, domain.PhaseNeutral, ClassifyPhase(trendingBars(20)))
}

func TestClassifyPhase_SustainedUptrendIsBull(t *testing.T) {
	assert.Equal(t, domain.PhaseBull, ClassifyPhase(trendingBars(60)))
}
