package strategy

import (
	"time"

	"github.com/nse-trader/core/internal/domain"
)

// Input bundles everything a strategy needs to produce one Signal. Bars
// is the trailing window ending at the latest close; Features is that
// same latest bar's computed indicator row.
type Input struct {
	Ticker              domain.Ticker
	Timeframe           domain.Timeframe
	Bars                []domain.OHLCVBar
	Features            domain.FeatureRow
	EnsembleProbability float64
	EnsembleConfidence  float64
	Regime              domain.Regime
}

// Strategy generates a directional signal from an Input.
type Strategy interface {
	Name() string
	Generate(in Input) (domain.Signal, error)
}

func latestClose(bars []domain.OHLCVBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}

func atrLevels(entry float64, atr float64, side domain.Side) domain.Levels {
	if atr <= 0 {
		atr = entry * 0.01
	}
	if side == domain.SideSell {
		return domain.Levels{
			Entry: entry, StopLoss: entry + 1.5*atr, Target1: entry - 1.5*atr, Target2: entry - 3*atr,
		}
	}
	return domain.Levels{
		Entry: entry, StopLoss: entry - 1.5*atr, Target1: entry + 1.5*atr, Target2: entry + 3*atr,
	}
}

// MLStrategy classifies directly off the ensemble's combined probability,
// the default strategy the adaptive-elite router falls back to.
type MLStrategy struct{}

func (MLStrategy) Name() string { return "ml" }

func (s MLStrategy) Generate(in Input) (domain.Signal, error) {
	entry := latestClose(in.Bars)
	sigType := categorizeProbability(in.EnsembleProbability)
	side := domain.SideBuy
	if sigType.IsSellSide() {
		side = domain.SideSell
	}
	return domain.Signal{
		Ticker: in.Ticker, Timeframe: in.Timeframe, Type: sigType,
		Probability: in.EnsembleProbability, Confidence: in.EnsembleConfidence,
		Levels: atrLevels(entry, in.Features["atr_14"], side),
		Strategy: s.Name(), Regime: in.Regime, Ts: time.Now().UTC(),
	}, nil
}

// MeanReversionStrategy trades Bollinger-band extremes confirmed by RSI,
// most effective in RegimeRanging.
type MeanReversionStrategy struct{}

func (MeanReversionStrategy) Name() string { return "mean_reversion" }

func (s MeanReversionStrategy) Generate(in Input) (domain.Signal, error) {
	entry := latestClose(in.Bars)
	rsi := in.Features["rsi_14"]
	bbUpper := in.Features["bb_upper"]
	bbLower := in.Features["bb_lower"]

	sigType := domain.Hold
	proba := 0.5
	switch {
	case entry <= bbLower && rsi <= 30:
		sigType = domain.Buy
		proba = 0.5 + (30-rsi)/100
	case entry >= bbUpper && rsi >= 70:
		sigType = domain.Sell
		proba = 0.5 - (rsi-70)/100
	}
	side := domain.SideBuy
	if sigType.IsSellSide() {
		side = domain.SideSell
	}
	confidence := 0.0
	if sigType.IsDirectional() {
		confidence = 0.5
	}
	return domain.Signal{
		Ticker: in.Ticker, Timeframe: in.Timeframe, Type: sigType,
		Probability: clamp01(proba), Confidence: confidence,
		Levels: atrLevels(entry, in.Features["atr_14"], side),
		Strategy: s.Name(), Regime: in.Regime, Ts: time.Now().UTC(),
	}, nil
}

// MomentumStrategy trades MACD/ADX-confirmed trend continuation, most
// effective in RegimeStrongTrend.
type MomentumStrategy struct{}

func (MomentumStrategy) Name() string { return "momentum" }

func (s MomentumStrategy) Generate(in Input) (domain.Signal, error) {
	entry := latestClose(in.Bars)
	macdHist := in.Features["macd_hist"]
	adx := in.Features["adx_14"]
	ema12 := in.Features["ema_12"]
	ema26 := in.Features["ema_26"]

	sigType := domain.Hold
	proba := 0.5
	if adx >= adxTrendThreshold {
		switch {
		case macdHist > 0 && ema12 > ema26:
			sigType = domain.Buy
			proba = 0.5 + clamp01(adx/100)*0.4
		case macdHist < 0 && ema12 < ema26:
			sigType = domain.Sell
			proba = 0.5 - clamp01(adx/100)*0.4
		}
	}
	side := domain.SideBuy
	if sigType.IsSellSide() {
		side = domain.SideSell
	}
	confidence := 0.0
	if sigType.IsDirectional() {
		confidence = clamp01(adx / 50)
	}
	return domain.Signal{
		Ticker: in.Ticker, Timeframe: in.Timeframe, Type: sigType,
		Probability: clamp01(proba), Confidence: confidence,
		Levels: atrLevels(entry, in.Features["atr_14"], side),
		Strategy: s.Name(), Regime: in.Regime, Ts: time.Now().UTC(),
	}, nil
}

func categorizeProbability(p float64) domain.SignalType {
	switch {
	case p >= 0.75:
		return domain.StrongBuy
	case p >= 0.55:
		return domain.Buy
	case p <= 0.25:
		return domain.StrongSell
	case p <= 0.45:
		return domain.Sell
	default:
		return domain.Hold
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
