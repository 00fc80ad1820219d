package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/domain"
)

func sig(tf domain.Timeframe, typ domain.SignalType, proba float64, levels domain.Levels) domain.Signal {
	return domain.Signal{Timeframe: tf, Type: typ, Probability: proba, Confidence: 0.8, Levels: levels, Ts: time.Now()}
}

func TestAggregate_NoSignalsErrors(t *testing.T) {
	a := NewAggregator()
	_, err := a.Aggregate("TCS.NS", nil, ContextEndOfDay)
	assert.Error(t, err)
}

func TestAggregate_UnanimousBuySupermajorityEscalatesToStrongBuy(t *testing.T) {
	a := NewAggregator()
	signals := map[domain.Timeframe]domain.Signal{
		domain.Timeframe1Day:  sig(domain.Timeframe1Day, domain.Buy, 0.6, domain.Levels{Entry: 100}),
		domain.Timeframe1Hour: sig(domain.Timeframe1Hour, domain.Buy, 0.6, domain.Levels{Entry: 101}),
	}
	result, err := a.Aggregate("TCS.NS", signals, ContextEndOfDay)
	require.NoError(t, err)
	assert.Equal(t, domain.StrongBuy, result.ConsensusSignal)
}

func TestAggregate_MajorityWithoutSupermajorityPromotesPlainDirection(t *testing.T) {
	a := NewAggregator()
	signals := map[domain.Timeframe]domain.Signal{
		domain.Timeframe1Day:  sig(domain.Timeframe1Day, domain.Buy, 0.58, domain.Levels{Entry: 100}),
		domain.Timeframe1Hour: sig(domain.Timeframe1Hour, domain.Sell, 0.42, domain.Levels{Entry: 101}),
	}
	result, err := a.Aggregate("TCS.NS", signals, ContextEndOfDay)
	require.NoError(t, err)
	// EOD weights favor 1d (0.50) over 1h (0.25); the buy side clears the 50%
	// majority threshold but not the 75% supermajority, so Hold is promoted to
	// Buy rather than escalated all the way to StrongBuy.
	assert.Equal(t, domain.Buy, result.ConsensusSignal)
}

func TestAggregate_WeightsRenormalizeToPresentTimeframes(t *testing.T) {
	a := NewAggregator()
	signals := map[domain.Timeframe]domain.Signal{
		domain.Timeframe1Day: sig(domain.Timeframe1Day, domain.Buy, 0.6, domain.Levels{Entry: 100}),
	}
	result, err := a.Aggregate("TCS.NS", signals, ContextEndOfDay)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, result.WeightVector[domain.Timeframe1Day], 1e-9)
}

func TestAggregate_LevelsPropagateFromHighestPriorityDirectionalTimeframe(t *testing.T) {
	a := NewAggregator()
	signals := map[domain.Timeframe]domain.Signal{
		domain.Timeframe1Day:  sig(domain.Timeframe1Day, domain.Buy, 0.6, domain.Levels{Entry: 100}),
		domain.Timeframe1Hour: sig(domain.Timeframe1Hour, domain.Hold, 0.5, domain.Levels{Entry: 999}),
	}
	result, err := a.Aggregate("TCS.NS", signals, ContextEndOfDay)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Levels.Entry)
}
