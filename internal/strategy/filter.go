package strategy

import (
	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
)

// SignalFilter demotes a directional signal to HOLD when its confidence is
// below the regime's threshold, checked once on the raw confidence and
// again after trend/volume scaling: a signal against the market phase has
// its confidence scaled by 0.7, and one with volume_ratio below 1.0 by
// 0.85. Trend and volume never demote a signal on their own, and there is
// no model-agreement check.
type SignalFilter struct {
	cfg config.ThresholdConfig
}

// NewSignalFilter returns a filter applying cfg's confidence thresholds.
func NewSignalFilter(cfg config.ThresholdConfig) *SignalFilter {
	return &SignalFilter{cfg: cfg}
}

// Apply runs sig through the filter chain, given the market phase and
// latest feature row it was generated from.
func (f *SignalFilter) Apply(sig domain.Signal, phase domain.MarketPhase, features domain.FeatureRow) domain.Signal {
	if !sig.Type.IsDirectional() {
		return sig
	}

	threshold := f.thresholdFor(sig.Regime)
	if sig.Confidence < threshold {
		return demote(sig, "confidence below threshold for regime")
	}

	if !trendConfirms(sig.Type, phase) {
		sig.Confidence *= 0.7 // partial disagreement, not a hard reject
	}

	volumeRatio, hasVolume := features["volume_ratio"]
	if hasVolume && volumeRatio < 1.0 {
		sig.Confidence *= 0.85
	}

	if sig.Confidence < threshold {
		return demote(sig, "confidence fell below threshold after trend/volume scaling")
	}

	return sig
}

func (f *SignalFilter) thresholdFor(regime domain.Regime) float64 {
	if !f.cfg.UseRegimeThresholds {
		return f.cfg.ConfidenceThreshold
	}
	switch regime {
	case domain.RegimeRanging:
		return f.cfg.ConfidenceThresholdRanging
	case domain.RegimeStrongTrend, domain.RegimeWeakTrend:
		return f.cfg.ConfidenceThresholdTrending
	default:
		return f.cfg.ConfidenceThreshold
	}
}

func trendConfirms(sigType domain.SignalType, phase domain.MarketPhase) bool {
	switch {
	case sigType.IsBuySide():
		return phase != domain.PhaseBear
	case sigType.IsSellSide():
		return phase != domain.PhaseBull
	default:
		return true
	}
}

func demote(sig domain.Signal, reason string) domain.Signal {
	sig.Type = domain.Hold
	sig.FilterReason = reason
	return sig
}
