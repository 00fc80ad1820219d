// Package autotrader implements the top-level scan-and-execute loop: a
// STOPPED/RUNNING state machine driving a non-blocking per-ticker scan,
// the circuit breaker, the adaptive confidence threshold, and per-ticker
// cooldown (spec §4.10).
package autotrader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nse-trader/core/internal/config"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/persistence"
)

// State is the AutoTrader's run state.
type State string

const (
	Stopped State = "STOPPED"
	Running State = "RUNNING"
)

// ScanFunc runs one full scan-and-execute cycle for ticker and returns
// whatever the caller wants logged; AutoTrader only drives the schedule
// and safety state, the scan's seven steps (fetch data, compute features,
// predict, ensemble, aggregate, plan, execute) live in cmd/scanner.
type ScanFunc func(ctx context.Context, ticker domain.Ticker, confidenceThreshold float64) error

type cooldownCatalog struct {
	Cooldowns map[string]time.Time `json:"cooldowns"`
}

// AutoTrader owns the circuit breaker and per-ticker cooldown, and
// guards against overlapping scans with a non-blocking lock — a scan
// request that arrives while one is already running is skipped, not
// queued (spec §4.10).
type AutoTrader struct {
	mu      sync.Mutex
	state   State
	scanLock sync.Mutex
	scanning bool

	breaker      domain.CircuitBreakerState
	cooldownStore *persistence.JSONStore
	cfg          config.CircuitBreakerConfig
	thresholds   config.ThresholdConfig
	rollingAccuracy func() (float64, int, error)

	log zerolog.Logger
}

// NewAutoTrader returns a stopped AutoTrader. rollingAccuracy supplies
// the trailing 30-day accuracy used by the adaptive threshold and the
// circuit breaker's accuracy-floor check.
func NewAutoTrader(dataDir string, cfg config.CircuitBreakerConfig, thresholds config.ThresholdConfig, rollingAccuracy func() (float64, int, error), log zerolog.Logger) *AutoTrader {
	return &AutoTrader{
		state:           Stopped,
		cooldownStore:   persistence.NewJSONStore(dataDir, "ticker_cooldowns"),
		cfg:             cfg,
		thresholds:      thresholds,
		rollingAccuracy: rollingAccuracy,
		log:             log.With().Str("component", "autotrader").Logger(),
	}
}

// Start transitions the AutoTrader into RUNNING.
func (a *AutoTrader) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Running
	a.log.Info().Msg("autotrader started")
}

// Stop transitions the AutoTrader into STOPPED; in-flight scans finish.
func (a *AutoTrader) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = Stopped
	a.log.Info().Msg("autotrader stopped")
}

// State returns the current run state.
func (a *AutoTrader) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// RunScan runs scan for ticker if the AutoTrader is running, the circuit
// breaker is clear, the ticker isn't cooling down, and no other scan is
// in flight. Returns ("", nil) when the scan was skipped for any of
// those reasons rather than an error — skipping is expected steady-state
// behavior, not a failure.
func (a *AutoTrader) RunScan(ctx context.Context, ticker domain.Ticker, scan ScanFunc) (skippedReason string, err error) {
	if a.State() != Running {
		return "not running", nil
	}

	if !a.scanLock.TryLock() {
		return "scan already in progress", nil
	}
	defer a.scanLock.Unlock()

	a.mu.Lock()
	breaker := a.breaker
	a.mu.Unlock()
	if breaker.Triggered {
		if time.Now().Before(breaker.CooldownEnd) {
			return "circuit breaker cooling down", nil
		}
		a.clearBreaker()
	}

	cooling, err := a.isTickerCoolingDown(ticker)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to check ticker cooldown, proceeding")
	} else if cooling {
		return fmt.Sprintf("%s in post-loss cooldown", ticker), nil
	}

	threshold := a.adaptiveThreshold()
	if err := scan(ctx, ticker, threshold); err != nil {
		return "", err
	}
	return "", nil
}

// adaptiveThreshold returns AdaptiveThresholdFloor instead of the base
// confidence threshold when rolling accuracy over at least 20 samples is
// below MinAccuracy, and the base threshold otherwise (spec §4.10's
// adaptive-accuracy-floor rule).
func (a *AutoTrader) adaptiveThreshold() float64 {
	base := a.thresholds.ConfidenceThreshold
	if !a.thresholds.UseAdaptiveThreshold || a.rollingAccuracy == nil {
		return base
	}
	accuracy, sampleSize, err := a.rollingAccuracy()
	if err != nil || sampleSize < 20 {
		return base
	}
	if accuracy < a.cfg.MinAccuracy {
		return a.thresholds.AdaptiveThresholdFloor
	}
	return base
}

// UpdatePnL feeds a realized trade outcome into the circuit breaker.
// Wired as the executor.PnLCallback so the two packages share no direct
// dependency.
func (a *AutoTrader) UpdatePnL(symbol domain.Ticker, realizedPnL float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.breaker.DailyPnL += realizedPnL
	if realizedPnL < 0 {
		a.breaker.ConsecutiveLosses++
		if err := a.setTickerCooldown(symbol, time.Duration(a.cfg.CooldownHoursAfterTickerLoss*float64(time.Hour))); err != nil {
			a.log.Warn().Err(err).Str("ticker", string(symbol)).Msg("failed to persist ticker cooldown")
		}
	} else {
		a.breaker.ConsecutiveLosses = 0
	}

	a.evaluateBreakerLocked()
}

// evaluateBreakerLocked checks three of the four trigger conditions (spec
// §4.10): consecutive losses, daily P&L vs the absolute limit, and rolling
// accuracy vs MinAccuracy over at least 5 evaluated samples. The fourth,
// daily P&L vs the pct limit, needs an account equity figure this package
// doesn't hold and is checked by EvaluateDailyLossPct instead.
func (a *AutoTrader) evaluateBreakerLocked() {
	if a.breaker.ConsecutiveLosses >= a.cfg.MaxConsecutiveLosses {
		a.tripBreakerLocked("max consecutive losses reached")
		return
	}
	if a.cfg.DailyLossLimitAmount > 0 && a.breaker.DailyPnL <= -a.cfg.DailyLossLimitAmount {
		a.tripBreakerLocked("daily loss amount limit reached")
		return
	}
	if a.rollingAccuracy != nil {
		accuracy, sampleSize, err := a.rollingAccuracy()
		if err == nil && sampleSize >= 5 && accuracy < a.cfg.MinAccuracy {
			a.tripBreakerLocked("rolling accuracy below minimum")
			return
		}
	}
}

// EvaluateDailyLossPct checks the daily P&L against the percentage limit,
// which needs account equity supplied by the caller.
func (a *AutoTrader) EvaluateDailyLossPct(accountEquity float64) {
	if accountEquity <= 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if -a.breaker.DailyPnL/accountEquity >= a.cfg.DailyLossLimitPct {
		a.tripBreakerLocked("daily loss percentage limit reached")
	}
}

func (a *AutoTrader) tripBreakerLocked(reason string) {
	if a.breaker.Triggered {
		return
	}
	a.breaker.Triggered = true
	a.breaker.TriggeredAt = time.Now().UTC()
	a.breaker.CooldownEnd = time.Now().Add(time.Duration(a.cfg.CooldownMinutes) * time.Minute)
	a.log.Warn().Str("reason", reason).Time("cooldown_end", a.breaker.CooldownEnd).Msg("circuit breaker tripped")
}

func (a *AutoTrader) clearBreaker() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.breaker = domain.CircuitBreakerState{}
	a.log.Info().Msg("circuit breaker cooldown elapsed, cleared")
}

// ResetDailyPnL zeroes the day's P&L tally; called by the scheduler's
// pre-market job (spec §4.10).
func (a *AutoTrader) ResetDailyPnL() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.breaker.DailyPnL = 0
	a.breaker.ConsecutiveLosses = 0
}

// BreakerState returns a snapshot of the current circuit-breaker state.
func (a *AutoTrader) BreakerState() domain.CircuitBreakerState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.breaker
}

func (a *AutoTrader) isTickerCoolingDown(ticker domain.Ticker) (bool, error) {
	var c cooldownCatalog
	if err := a.cooldownStore.Load(&c); err != nil {
		return false, fmt.Errorf("autotrader: load cooldowns: %w", err)
	}
	until, ok := c.Cooldowns[string(ticker)]
	if !ok {
		return false, nil
	}
	return time.Now().Before(until), nil
}

func (a *AutoTrader) setTickerCooldown(ticker domain.Ticker, d time.Duration) error {
	var c cooldownCatalog
	return a.cooldownStore.Update(&c, func() error {
		if c.Cooldowns == nil {
			c.Cooldowns = make(map[string]time.Time)
		}
		c.Cooldowns[string(ticker)] = time.Now().Add(d)
		return nil
	})
}
