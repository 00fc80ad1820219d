// Package strategy implements regime/phase detection, the four signal
// strategies (ML, mean-reversion, momentum, adaptive-elite), the
// adaptive-elite routing table, and the post-generation SignalFilter
// (spec §4.2, §4.3). Regime detection is grounded on the teacher's
// cascading MarketStateDetector (internal/market_regime/market_state.go),
// generalized from exchange-session detection to ADX/ATR-percentile
// trend-strength detection.
package strategy

import (
	"sort"

	"github.com/markcheno/go-talib"

	"github.com/nse-trader/core/internal/domain"
)

const (
	adxTrendThreshold       = 25.0
	adxStrongTrendThreshold = 40.0
	atrHighVolPercentile    = 0.80
)

// DetectRegime classifies the current market regime from a trailing bar
// window, cascading through ADX trend strength first and ATR-percentile
// volatility second — mirroring the teacher's dominant/secondary cascade
// structure where the first matching condition wins.
func DetectRegime(bars []domain.OHLCVBar) domain.Regime {
	if len(bars) < 30 {
		return domain.RegimeRanging
	}
	high, low, close := splitHLC(bars)
	adx := talib.Adx(high, low, close, 14)
	atr := talib.Atr(high, low, close, 14)

	latestADX := adx[len(adx)-1]
	if latestADX >= adxStrongTrendThreshold {
		return domain.RegimeStrongTrend
	}

	if isHighVolatility(atr, close) {
		return domain.RegimeHighVolatility
	}

	if latestADX >= adxTrendThreshold {
		return domain.RegimeWeakTrend
	}
	return domain.RegimeRanging
}

func isHighVolatility(atr, close []float64) bool {
	n := len(atr)
	if n < 20 {
		return false
	}
	pct := make([]float64, 0, n)
	for i := range atr {
		if close[i] > 0 {
			pct = append(pct, atr[i]/close[i])
		}
	}
	if len(pct) < 20 {
		return false
	}
	sorted := append([]float64(nil), pct...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)-1) * atrHighVolPercentile)
	threshold := sorted[idx]
	return pct[len(pct)-1] >= threshold
}

// ClassifyPhase returns the broad directional bias relative to the
// 20/50-period moving averages.
func ClassifyPhase(bars []domain.OHLCVBar) domain.MarketPhase {
	if len(bars) < 50 {
		return domain.PhaseNeutral
	}
	_, _, close := splitHLC(bars)
	sma20 := talib.Sma(close, 20)
	sma50 := talib.Sma(close, 50)
	last := len(close) - 1
	switch {
	case sma20[last] > sma50[last] && close[last] > sma20[last]:
		return domain.PhaseBull
	case sma20[last] < sma50[last] && close[last] < sma20[last]:
		return domain.PhaseBear
	default:
		return domain.PhaseNeutral
	}
}

func splitHLC(bars []domain.OHLCVBar) (high, low, close []float64) {
	n := len(bars)
	high, low, close = make([]float64, n), make([]float64, n), make([]float64, n)
	for i, b := range bars {
		high[i], low[i], close[i] = b.High, b.Low, b.Close
	}
	return
}
