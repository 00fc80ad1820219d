// Package risk implements RiskManager's layered pre-trade validation,
// grounded on the teacher's safety_service.go ValidateTrade: each layer
// is either hard-fail-safe (rejects the trade outright) or
// soft-fail-safe (surfaces a warning but lets the trade proceed), per
// spec §4.8.
package risk

import (
	"fmt"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
)

// PortfolioState is the subset of account state RiskManager needs to
// evaluate portfolio-level checks.
type PortfolioState struct {
	OpenPositions        []domain.Position
	AccountEquity        float64
	CumulativeRiskAmount float64
	DailyRiskAmount       float64
}

// Verdict is the outcome of ValidateTrade: Approved is false only when a
// hard-fail-safe layer rejected the trade. Layers 1-5 all run and each
// adds its own reason; when any of them rejects, or when layer 7 or 8
// rejects, the remaining layers are skipped, so Warnings hold only the
// findings of the soft layers that ran.
type Verdict struct {
	Approved bool
	Reasons  []string // hard-fail reasons, empty when Approved
	Warnings []string // soft-fail-safe observations
}

// Manager runs the layered validation chain.
type Manager struct {
	cfg config.RiskConfig
}

// NewManager returns a manager enforcing cfg's limits.
func NewManager(cfg config.RiskConfig) *Manager {
	return &Manager{cfg: cfg}
}

// ValidateTrade runs the layers against plan and the current portfolio
// state, in order. Per-trade layers run first (they reject a malformed plan before
// portfolio context matters), then per-portfolio layers.
func (m *Manager) ValidateTrade(plan domain.TradePlan, portfolio PortfolioState) Verdict {
	v := Verdict{Approved: true}

	// Layer 1: per-share risk must be positive and plan internally consistent.
	perShareRisk := absf(plan.Entry - plan.StopLoss)
	if perShareRisk <= 0 {
		v.Approved = false
		v.Reasons = append(v.Reasons, "per-share risk is zero or negative")
	}

	// Layer 2: quantity sanity.
	if plan.Quantity <= 0 {
		v.Approved = false
		v.Reasons = append(v.Reasons, "quantity must be positive")
	}

	// Layer 3: stop-loss must sit on the correct side of entry for the
	// trade direction — a malformed plan here is a hard fail, not a warning.
	if plan.Side == domain.SideBuy && plan.StopLoss >= plan.Entry {
		v.Approved = false
		v.Reasons = append(v.Reasons, "buy stop-loss is not below entry")
	}
	if plan.Side == domain.SideSell && plan.StopLoss <= plan.Entry {
		v.Approved = false
		v.Reasons = append(v.Reasons, "sell stop-loss is not above entry")
	}

	// Layer 4 (hard): minimum risk:reward ratio — the planner only warns
	// on a low ratio; here it rejects, as the final gate before execution.
	if plan.RiskRewardRatio < m.cfg.MinRiskRewardRatio {
		v.Approved = false
		v.Reasons = append(v.Reasons, fmt.Sprintf("risk:reward %.2f below minimum %.2f", plan.RiskRewardRatio, m.cfg.MinRiskRewardRatio))
	}

	// Layer 5: no existing open position in the same symbol, whatever its
	// direction.
	for _, pos := range portfolio.OpenPositions {
		if pos.Symbol == plan.Symbol {
			v.Approved = false
			v.Reasons = append(v.Reasons, fmt.Sprintf("existing open position in %s", plan.Symbol))
			break
		}
	}

	if !v.Approved {
		return v
	}

	// Layer 6 (soft): position size as a percentage of equity.
	if portfolio.AccountEquity > 0 {
		positionPct := plan.CapitalRequired / portfolio.AccountEquity
		if positionPct > m.cfg.MaxPositionSize {
			v.Warnings = append(v.Warnings, fmt.Sprintf("position size %.1f%% exceeds configured max %.1f%%", positionPct*100, m.cfg.MaxPositionSize*100))
		}
	}

	// Layer 7 (hard): open-position count cap.
	if len(portfolio.OpenPositions) >= m.cfg.MaxOpenPositions {
		v.Approved = false
		v.Reasons = append(v.Reasons, fmt.Sprintf("open position count %d at configured max %d", len(portfolio.OpenPositions), m.cfg.MaxOpenPositions))
		return v
	}

	// Layer 8 (hard): cumulative portfolio risk cap.
	if portfolio.AccountEquity > 0 {
		cumulativeRiskPct := (portfolio.CumulativeRiskAmount + plan.RiskAmount) / portfolio.AccountEquity
		if cumulativeRiskPct > m.cfg.MaxPortfolioRisk {
			v.Approved = false
			v.Reasons = append(v.Reasons, fmt.Sprintf("cumulative portfolio risk %.1f%% would exceed max %.1f%%", cumulativeRiskPct*100, m.cfg.MaxPortfolioRisk*100))
			return v
		}
	}

	// Layer 9 (soft): daily risk budget.
	if portfolio.AccountEquity > 0 {
		dailyRiskPct := (portfolio.DailyRiskAmount + plan.RiskAmount) / portfolio.AccountEquity
		if dailyRiskPct > m.cfg.MaxDailyRisk {
			v.Warnings = append(v.Warnings, fmt.Sprintf("daily risk %.1f%% exceeds configured max %.1f%%", dailyRiskPct*100, m.cfg.MaxDailyRisk*100))
		}
	}

	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
