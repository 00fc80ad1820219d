// Package planner turns a directional signal into an actionable
// domain.TradePlan: level adjustment by holding horizon, risk-based
// position sizing, and pre-approval validation (spec §4.7).
package planner

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/persistence"
)

// levelPercents gives the fixed stop/target1/target2 distance from entry,
// as a fraction of entry price, by holding horizon (spec §4.7): INTRADAY
// tightens to a 2% stop and 1%/1.5% targets, POSITION widens to a 5% stop
// and 5%/10% targets. SWING is absent from this map — it keeps the
// strategy-provided levels unchanged.
var levelPercents = map[domain.TradingType][3]float64{
	domain.Intraday:        {0.02, 0.01, 0.015},
	domain.PositionTrading: {0.05, 0.05, 0.10},
}

// Planner builds and persists trade plans.
type Planner struct {
	store *persistence.JSONStore
	log   zerolog.Logger
}

// planCatalog is the on-disk shape of persisted plans, keyed by plan ID.
type planCatalog struct {
	Plans map[string]domain.TradePlan `json:"plans"`
}

// NewPlanner returns a planner persisting plans under dataDir/trade_plans.json.
func NewPlanner(dataDir string, log zerolog.Logger) *Planner {
	return &Planner{
		store: persistence.NewJSONStore(dataDir, "trade_plans"),
		log:   log.With().Str("component", "planner").Logger(),
	}
}

// BuildPlan sizes and validates a plan from sig for tradingType, given
// available capital and the instrument's lot size (1 for cash equity).
func (p *Planner) BuildPlan(sig domain.Signal, tradingType domain.TradingType, product domain.Product, capital float64, lotSize int, riskCfg config.RiskConfig) (domain.TradePlan, error) {
	if !sig.Type.IsDirectional() {
		return domain.TradePlan{}, fmt.Errorf("planner: refusing to plan a HOLD signal for %s", sig.Ticker)
	}
	if lotSize <= 0 {
		lotSize = 1
	}

	side := domain.SideBuy
	if sig.Type.IsSellSide() {
		side = domain.SideSell
	}

	levels := adjustLevels(sig.Levels, side, tradingType)

	perShareRisk := math.Abs(levels.Entry - levels.StopLoss)
	if perShareRisk <= 0 {
		return domain.TradePlan{}, fmt.Errorf("planner: zero per-share risk for %s, refusing to size", sig.Ticker)
	}

	riskAmount := capital * riskCfg.MaxRiskPerTrade
	quantity := int(math.Floor(riskAmount / perShareRisk))
	quantity = (quantity / lotSize) * lotSize
	if quantity < lotSize {
		quantity = lotSize
	}

	capitalRequired := float64(quantity) * levels.Entry
	maxPositionCapital := capital * riskCfg.MaxPositionSize
	if capitalRequired > maxPositionCapital && levels.Entry > 0 {
		capped := int(math.Floor(maxPositionCapital / levels.Entry))
		capped = (capped / lotSize) * lotSize
		if capped < lotSize {
			capped = lotSize
		}
		quantity = capped
		capitalRequired = float64(quantity) * levels.Entry
	}

	maxLoss := float64(quantity) * perShareRisk
	riskRewardRatio := 0.0
	if rewardDist := math.Abs(levels.Target1 - levels.Entry); perShareRisk > 0 {
		riskRewardRatio = rewardDist / perShareRisk
	}

	plan := domain.TradePlan{
		ID:              uuid.NewString(),
		Symbol:          sig.Ticker,
		Side:            side,
		Quantity:        quantity,
		Entry:           levels.Entry,
		StopLoss:        levels.StopLoss,
		Target1:         levels.Target1,
		Target2:         levels.Target2,
		RiskAmount:      riskAmount,
		RiskRewardRatio: riskRewardRatio,
		OrderType:       orderTypeFor(tradingType),
		Product:         product,
		TradingType:     tradingType,
		CapitalRequired: capitalRequired,
		MaxLoss:         maxLoss,
		Status:          domain.PlanDraft,
		CreatedAt:       time.Now().UTC(),
	}

	plan.Warnings = validate(plan, perShareRisk, riskCfg)
	if quantity <= 0 {
		return plan, fmt.Errorf("planner: computed non-positive quantity for %s", sig.Ticker)
	}

	if err := p.persist(plan); err != nil {
		p.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("failed to persist trade plan")
	}
	plan.Status = domain.PlanApproved
	return plan, nil
}

func adjustLevels(levels domain.Levels, side domain.Side, tradingType domain.TradingType) domain.Levels {
	pcts, ok := levelPercents[tradingType]
	if !ok {
		// SWING: keep the strategy-provided levels as-is.
		return levels
	}
	stopDist := levels.Entry * pcts[0]
	t1Dist := levels.Entry * pcts[1]
	t2Dist := levels.Entry * pcts[2]

	if side == domain.SideSell {
		return domain.Levels{
			Entry: levels.Entry, StopLoss: levels.Entry + stopDist,
			Target1: levels.Entry - t1Dist, Target2: levels.Entry - t2Dist,
		}
	}
	return domain.Levels{
		Entry: levels.Entry, StopLoss: levels.Entry - stopDist,
		Target1: levels.Entry + t1Dist, Target2: levels.Entry + t2Dist,
	}
}

func orderTypeFor(tradingType domain.TradingType) domain.OrderType {
	if tradingType == domain.Intraday {
		return domain.OrderMarket
	}
	return domain.OrderLimit
}

// validate runs the pre-approval checks (spec §4.7) and returns their
// findings as warnings, never as rejects: a stop distance under 0.2% or
// over 10% of entry, and a risk:reward ratio below 1.0. Quantity is not
// checked here; BuildPlan turns a non-positive quantity into an error.
func validate(plan domain.TradePlan, perShareRisk float64, riskCfg config.RiskConfig) []string {
	var warnings []string
	if plan.Entry > 0 {
		stopPct := perShareRisk / plan.Entry
		if stopPct < 0.002 {
			warnings = append(warnings, fmt.Sprintf("stop distance %.2f%% is unusually tight", stopPct*100))
		}
		if stopPct > 0.10 {
			warnings = append(warnings, fmt.Sprintf("stop distance %.2f%% is unusually wide", stopPct*100))
		}
	}
	if plan.RiskRewardRatio < 1.0 {
		warnings = append(warnings, fmt.Sprintf("risk:reward %.2f is below 1.00", plan.RiskRewardRatio))
	}
	return warnings
}

func (p *Planner) persist(plan domain.TradePlan) error {
	var c planCatalog
	return p.store.Update(&c, func() error {
		if c.Plans == nil {
			c.Plans = make(map[string]domain.TradePlan)
		}
		c.Plans[plan.ID] = plan
		return nil
	})
}

// MarkExecuted updates a persisted plan's status and broker order ID.
func (p *Planner) MarkExecuted(planID, orderID string) error {
	var c planCatalog
	return p.store.Update(&c, func() error {
		plan, ok := c.Plans[planID]
		if !ok {
			return fmt.Errorf("planner: unknown plan %s", planID)
		}
		plan.Status = domain.PlanExecuted
		plan.OrderID = orderID
		c.Plans[planID] = plan
		return nil
	})
}
