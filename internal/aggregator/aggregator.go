// Package aggregator combines per-timeframe signals into one consensus
// recommendation per ticker (spec §4.5's multi-timeframe aggregation).
package aggregator

import (
	"fmt"

	"github.com/nse-trader/core/internal/domain"
)

// Context selects which fixed weight vector the aggregator applies.
type Context string

const (
	// ContextIntraday weights finer timeframes higher, for INTRADAY plans.
	ContextIntraday Context = "intraday"
	// ContextEndOfDay weights coarser timeframes higher, for SWING/POSITION plans.
	ContextEndOfDay Context = "eod"
)

var intradayWeights = map[domain.Timeframe]float64{
	domain.Timeframe5Min:  0.35,
	domain.Timeframe15Min: 0.30,
	domain.Timeframe1Hour: 0.25,
	domain.Timeframe1Day:  0.10,
}

var eodWeights = map[domain.Timeframe]float64{
	domain.Timeframe5Min:  0.10,
	domain.Timeframe15Min: 0.15,
	domain.Timeframe1Hour: 0.25,
	domain.Timeframe1Day:  0.50,
}

// levelPriority lists the timeframe to source entry/stop/target levels
// from, in preference order — the first timeframe present in the input
// wins, since levels from a single timeframe are internally consistent
// in a way an average of levels across timeframes would not be.
var levelPriority = map[Context][]domain.Timeframe{
	ContextIntraday: {domain.Timeframe5Min, domain.Timeframe15Min, domain.Timeframe1Hour, domain.Timeframe1Day},
	ContextEndOfDay: {domain.Timeframe1Day, domain.Timeframe1Hour, domain.Timeframe15Min, domain.Timeframe5Min},
}

// Aggregator produces a domain.MultiTimeframeSignal from per-timeframe
// domain.Signal inputs.
type Aggregator struct{}

// NewAggregator returns a ready aggregator; it holds no state.
func NewAggregator() *Aggregator { return &Aggregator{} }

// Aggregate combines signals (one per timeframe present, possibly a
// subset of domain.AllTimeframes) into a single consensus signal.
func (a *Aggregator) Aggregate(ticker domain.Ticker, signals map[domain.Timeframe]domain.Signal, ctx Context) (domain.MultiTimeframeSignal, error) {
	if len(signals) == 0 {
		return domain.MultiTimeframeSignal{}, fmt.Errorf("aggregator: no timeframe signals for %s", ticker)
	}

	weights := a.normalizedWeights(signals, ctx)

	var weightedProba, weightedConf, buyWeight, sellWeight float64
	breakdown := make([]domain.TimeframeBreakdown, 0, len(signals))
	for _, tf := range domain.AllTimeframes {
		sig, ok := signals[tf]
		if !ok {
			continue
		}
		w := weights[tf]
		weightedProba += w * sig.Probability
		weightedConf += w * sig.Confidence
		if sig.Type.IsBuySide() {
			buyWeight += w
		} else if sig.Type.IsSellSide() {
			sellWeight += w
		}
		breakdown = append(breakdown, domain.TimeframeBreakdown{
			Timeframe: tf, Signal: sig.Type, Probability: sig.Probability, Confidence: sig.Confidence, Weight: w,
		})
	}

	consensus := classify(weightedProba, buyWeight, sellWeight)
	levels := a.propagateLevels(signals, ctx)

	return domain.MultiTimeframeSignal{
		Ticker:          ticker,
		ConsensusSignal: consensus,
		Probability:     weightedProba,
		Confidence:      weightedConf,
		Breakdown:       breakdown,
		WeightVector:    weights,
		Levels:          levels,
		Ts:              signals[anyKey(signals)].Ts,
	}, nil
}

// normalizedWeights returns the fixed weight vector restricted to the
// timeframes actually present, renormalized to sum to 1.
func (a *Aggregator) normalizedWeights(signals map[domain.Timeframe]domain.Signal, ctx Context) map[domain.Timeframe]float64 {
	base := intradayWeights
	if ctx == ContextEndOfDay {
		base = eodWeights
	}
	out := make(map[domain.Timeframe]float64, len(signals))
	var total float64
	for tf := range signals {
		if w, ok := base[tf]; ok {
			out[tf] = w
			total += w
		}
	}
	if total == 0 {
		return out
	}
	for tf := range out {
		out[tf] /= total
	}
	return out
}

func (a *Aggregator) propagateLevels(signals map[domain.Timeframe]domain.Signal, ctx Context) domain.Levels {
	for _, tf := range levelPriority[ctx] {
		if sig, ok := signals[tf]; ok && sig.Type.IsDirectional() {
			return sig.Levels
		}
	}
	for _, tf := range levelPriority[ctx] {
		if sig, ok := signals[tf]; ok {
			return sig.Levels
		}
	}
	return domain.Levels{}
}

// classify maps the weighted probability into a categorical signal, then
// applies the override rule (spec §4.5): if a supermajority (>=75% of
// weight) of timeframes agree on a direction, escalate to the STRONG
// variant regardless of the raw probability; a simple majority (>=50%)
// guarantees at least the plain directional call.
func classify(weightedProba, buyWeight, sellWeight float64) domain.SignalType {
	base := categorize(weightedProba)

	switch {
	case buyWeight >= 0.75:
		return domain.StrongBuy
	case sellWeight >= 0.75:
		return domain.StrongSell
	case buyWeight >= 0.50 && !base.IsSellSide():
		if base == domain.Hold {
			return domain.Buy
		}
		return base
	case sellWeight >= 0.50 && !base.IsBuySide():
		if base == domain.Hold {
			return domain.Sell
		}
		return base
	default:
		return base
	}
}

func categorize(p float64) domain.SignalType {
	switch {
	case p >= 0.65:
		return domain.StrongBuy
	case p >= 0.55:
		return domain.Buy
	case p <= 0.35:
		return domain.StrongSell
	case p <= 0.45:
		return domain.Sell
	default:
		return domain.Hold
	}
}

func anyKey(signals map[domain.Timeframe]domain.Signal) domain.Timeframe {
	for k := range signals {
		return k
	}
	return ""
}
