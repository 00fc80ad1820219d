package planner

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
)

func buySignal() domain.Signal {
	return domain.Signal{
		Ticker: "TCS.NS", Type: domain.Buy,
		Levels: domain.Levels{Entry: 100, StopLoss: 99, Target1: 102, Target2: 103},
	}
}

func TestBuildPlan_RefusesHoldSignal(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	sig := buySignal()
	sig.Type = domain.Hold
	_, err := p.BuildPlan(sig, domain.Swing, domain.ProductDelivery, 1_000_000, 1, config.RiskConfig{MaxRiskPerTrade: 0.01, MaxPositionSize: 0.25})
	assert.Error(t, err)
}

func TestBuildPlan_SizesByRiskPerTrade(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	plan, err := p.BuildPlan(buySignal(), domain.Intraday, domain.ProductDelivery, 1_000_000, 1, config.RiskConfig{
		MaxRiskPerTrade: 0.01, MaxPositionSize: 0.9, MinRiskRewardRatio: 1.0,
	})
	require.NoError(t, err)
	assert.Greater(t, plan.Quantity, 0)
	assert.Equal(t, domain.PlanApproved, plan.Status)
	assert.Less(t, plan.StopLoss, plan.Entry)
}

func TestBuildPlan_CapsPositionSizeAgainstMaxCapital(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	plan, err := p.BuildPlan(buySignal(), domain.Intraday, domain.ProductDelivery, 10000, 1, config.RiskConfig{
		MaxRiskPerTrade: 0.5, MaxPositionSize: 0.1, MinRiskRewardRatio: 1.0,
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, plan.CapitalRequired, 10000*0.1+plan.Entry) // within one share of the cap
}

func TestBuildPlan_LevelsFollowTradingTypeFixedPercentages(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	cfg := config.RiskConfig{MaxRiskPerTrade: 0.01, MaxPositionSize: 0.9, MinRiskRewardRatio: 0.1}

	intraday, err := p.BuildPlan(buySignal(), domain.Intraday, domain.ProductDelivery, 1_000_000, 1, cfg)
	require.NoError(t, err)
	swing, err := p.BuildPlan(buySignal(), domain.Swing, domain.ProductDelivery, 1_000_000, 1, cfg)
	require.NoError(t, err)
	position, err := p.BuildPlan(buySignal(), domain.PositionTrading, domain.ProductDelivery, 1_000_000, 1, cfg)
	require.NoError(t, err)

	// INTRADAY tightens to a fixed 2% stop / 1%-1.5% targets, regardless of
	// the signal's own raw levels.
	assert.InDelta(t, 2.0, intraday.Entry-intraday.StopLoss, 1e-9)
	assert.InDelta(t, 1.0, intraday.Target1-intraday.Entry, 1e-9)
	assert.InDelta(t, 1.5, intraday.Target2-intraday.Entry, 1e-9)
	assert.Equal(t, domain.OrderMarket, intraday.OrderType)

	// SWING keeps the strategy-provided levels untouched.
	assert.Equal(t, 99.0, swing.StopLoss)
	assert.Equal(t, 102.0, swing.Target1)
	assert.Equal(t, 103.0, swing.Target2)
	assert.Equal(t, domain.OrderLimit, swing.OrderType)

	// POSITION widens to a fixed 5% stop / 5%-10% targets.
	assert.InDelta(t, 5.0, position.Entry-position.StopLoss, 1e-9)
	assert.InDelta(t, 5.0, position.Target1-position.Entry, 1e-9)
	assert.InDelta(t, 10.0, position.Target2-position.Entry, 1e-9)
	assert.Equal(t, domain.OrderLimit, position.OrderType)
}

func TestBuildPlan_LowRiskRewardSurfacesWarningButStillApproves(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	sig := buySignal()
	sig.Levels.Target1 = 100.1 // barely above entry, poor reward for the risk taken
	// SWING keeps the raw levels, so this low target actually reaches validate().
	plan, err := p.BuildPlan(sig, domain.Swing, domain.ProductDelivery, 1_000_000, 1, config.RiskConfig{
		MaxRiskPerTrade: 0.01, MaxPositionSize: 0.9, MinRiskRewardRatio: 2.0,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Warnings)
}

func TestPlanner_MarkExecutedUnknownPlanErrors(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	err := p.MarkExecuted("nope", "order-1")
	assert.Error(t, err)
}

func TestPlanner_MarkExecutedUpdatesStatusAndOrderID(t *testing.T) {
	p := NewPlanner(t.TempDir(), zerolog.Nop())
	plan, err := p.BuildPlan(buySignal(), domain.Intraday, domain.ProductDelivery, 1_000_000, 1, config.RiskConfig{
		MaxRiskPerTrade: 0.01, MaxPositionSize: 0.9, MinRiskRewardRatio: 1.0,
	})
	require.NoError(t, err)
	require.NoError(t, p.MarkExecuted(plan.ID, "order-42"))
}
