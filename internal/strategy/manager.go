package strategy

import (
	"fmt"

	"github.com/nse-trader/core/internal/domain"
)

// AdaptiveElite routes each (ticker, timeframe) to the single-purpose
// strategy best suited to the detected regime, rather than blending all
// three — a strong trend calls for momentum, a range calls for mean
// reversion, and anything in between falls back to the ML ensemble
// (spec §4.2's adaptive-elite routing table).
type AdaptiveElite struct {
	ml            Strategy
	meanReversion Strategy
	momentum      Strategy
}

// NewAdaptiveElite wires the three underlying strategies into one router.
func NewAdaptiveElite() *AdaptiveElite {
	return &AdaptiveElite{ml: MLStrategy{}, meanReversion: MeanReversionStrategy{}, momentum: MomentumStrategy{}}
}

func (a *AdaptiveElite) Name() string { return "adaptive_elite" }

// route returns the strategy assigned to regime by the fixed routing table.
func (a *AdaptiveElite) route(regime domain.Regime) Strategy {
	switch regime {
	case domain.RegimeStrongTrend:
		return a.momentum
	case domain.RegimeRanging:
		return a.meanReversion
	case domain.RegimeWeakTrend, domain.RegimeHighVolatility:
		return a.ml
	default:
		return a.ml
	}
}

func (a *AdaptiveElite) Generate(in Input) (domain.Signal, error) {
	sig, err := a.route(in.Regime).Generate(in)
	if err != nil {
		return sig, err
	}
	sig.Strategy = a.Name() + ":" + sig.Strategy
	return sig, nil
}

// Manager selects and invokes one of the four strategies by name, used
// by the scanner CLI's --no-elite flag to bypass adaptive routing.
type Manager struct {
	strategies map[string]Strategy
}

// NewManager registers the four named strategies (spec §4.2): "ml",
// "mean_reversion", "momentum", "adaptive_elite".
func NewManager() *Manager {
	return &Manager{strategies: map[string]Strategy{
		"ml":             MLStrategy{},
		"mean_reversion": MeanReversionStrategy{},
		"momentum":       MomentumStrategy{},
		"adaptive_elite": NewAdaptiveElite(),
	}}
}

// Generate dispatches to the named strategy.
func (m *Manager) Generate(name string, in Input) (domain.Signal, error) {
	s, ok := m.strategies[name]
	if !ok {
		return domain.Signal{}, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return s.Generate(in)
}
