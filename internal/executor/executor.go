// Package executor places and manages broker orders on behalf of
// approved trade plans: buy/sell execution with retry, stop-loss
// modification, and the target/stop exit scan (spec §4.9). Paper and
// live trading share this single code path; paper mode only swaps in a
// synthetic order ID instead of calling the broker.
package executor

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nse-trader/core/internal/core/errs"
	"github.com/nse-trader/core/internal/domain"
	"github.com/nse-trader/core/internal/persistence"
)

// Mode selects whether orders reach the broker or are simulated.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

const (
	maxAttempts  = 3
	retryBaseDelay = 500 * time.Millisecond
)

// PnLCallback is invoked with the realized P&L of a closed position.
// Injected rather than held as a back-reference to the caller (the
// AutoTrader that owns circuit-breaker state) so Executor has no cyclic
// dependency on it, per spec §9's redesign note.
type PnLCallback func(symbol domain.Ticker, realizedPnL float64)

type pendingCatalog struct {
	// Pending is a FIFO queue per ticker: BUY executions enqueue at the
	// back, SELL executions resolve the oldest entry first.
	Pending map[string][]domain.PendingPrediction `json:"pending"`
}

// Executor places orders and maintains the pending-prediction feedback
// queue that lets the model registry score its own accuracy.
type Executor struct {
	broker  domain.BrokerClient
	journal *persistence.Journal
	pending *persistence.JSONStore
	mode    Mode
	onPnL   PnLCallback
	log     zerolog.Logger
}

// NewExecutor returns an executor in the given mode. onPnL may be nil if
// the caller doesn't need P&L feedback (e.g. manual/CLI executions).
func NewExecutor(broker domain.BrokerClient, journal *persistence.Journal, dataDir string, mode Mode, onPnL PnLCallback, log zerolog.Logger) *Executor {
	return &Executor{
		broker:  broker,
		journal: journal,
		pending: persistence.NewJSONStore(dataDir, "pending_predictions"),
		mode:    mode,
		onPnL:   onPnL,
		log:     log.With().Str("component", "executor").Logger(),
	}
}

// ExecuteBuy places (or simulates) a BUY order for plan and enqueues a
// PendingPrediction keyed by modelID/probability for later resolution.
func (e *Executor) ExecuteBuy(plan domain.TradePlan, modelID string, probability float64) (domain.ExecutionResult, error) {
	res, err := e.place(plan, retryLinear)
	if err != nil {
		return res, err
	}

	pred := domain.PendingPrediction{ModelID: modelID, Ticker: plan.Symbol, Probability: probability, EntryPrice: res.Price, Ts: time.Now().UTC()}
	if err := e.enqueuePending(pred); err != nil {
		e.log.Warn().Err(err).Str("ticker", string(plan.Symbol)).Msg("failed to enqueue pending prediction")
	}

	if err := e.journal.RecordExecution(res, plan.Product, string(plan.TradingType), time.Now().UTC()); err != nil {
		e.log.Warn().Err(err).Msg("failed to record buy execution in journal")
	}
	return res, nil
}

// ExecuteSell places (or simulates) a SELL order, resolves the oldest
// pending prediction for the ticker against exitPrice, and invokes the
// P&L callback with the realized dollar profit or loss.
func (e *Executor) ExecuteSell(plan domain.TradePlan, exitPrice float64) (domain.ExecutionResult, error) {
	res, err := e.place(plan, retryLinear)
	if err != nil {
		return res, err
	}

	if err := e.journal.RecordExecution(res, plan.Product, string(plan.TradingType), time.Now().UTC()); err != nil {
		e.log.Warn().Err(err).Msg("failed to record sell execution in journal")
	}

	pred, found, err := e.dequeueOldestPending(plan.Symbol)
	if err != nil {
		e.log.Warn().Err(err).Str("ticker", string(plan.Symbol)).Msg("failed to resolve pending prediction")
		return res, nil
	}
	if !found {
		return res, nil
	}

	realizedReturn := (exitPrice - pred.EntryPrice) / pred.EntryPrice
	correct := realizedReturn > 0
	resolved := domain.ResolvedPrediction{
		PendingPrediction: pred, ExitPrice: exitPrice, RealizedReturn: realizedReturn, Correct: &correct, ResolvedAt: time.Now().UTC(),
	}
	if err := e.journal.RecordResolvedPrediction(resolved); err != nil {
		e.log.Warn().Err(err).Msg("failed to record resolved prediction")
	}

	realizedPnL := float64(plan.Quantity) * (exitPrice - pred.EntryPrice)
	if e.onPnL != nil {
		e.onPnL(plan.Symbol, realizedPnL)
	}
	return res, nil
}

// UpdateStopLoss modifies an existing order's stop-trigger price, with
// the same linear retry policy as order placement.
func (e *Executor) UpdateStopLoss(orderID string, newStopPrice float64) domain.ModifyResult {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := e.broker.ModifyOrder(orderID, newStopPrice)
		if err == nil {
			return domain.ModifyResult{Success: true, OrderID: orderID}
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		time.Sleep(retryBaseDelay * time.Duration(attempt))
	}
	return domain.ModifyResult{Success: false, OrderID: orderID, Reason: lastErr.Error()}
}

// CheckAndExitPositions scans open positions against their plans' target
// and stop levels: target-1 triggers a 50% scale-out, target-2 and
// stop-loss trigger a full exit.
func (e *Executor) CheckAndExitPositions(positions []domain.Position, plans map[domain.Ticker]domain.TradePlan, quotes map[domain.Ticker]domain.Quote) []domain.ExitResult {
	var results []domain.ExitResult
	for _, pos := range positions {
		plan, ok := plans[pos.Symbol]
		if !ok {
			continue
		}
		quote, ok := quotes[pos.Symbol]
		if !ok {
			continue
		}
		price := quote.LastPrice
		exit, shouldExit := evaluateExit(plan, pos, price)
		if !shouldExit {
			continue
		}

		sellPlan := plan
		sellPlan.Side = domain.SideSell
		sellPlan.Quantity = exit.QuantitySold
		res, err := e.ExecuteSell(sellPlan, price)
		if err != nil {
			e.log.Warn().Err(err).Str("ticker", string(pos.Symbol)).Msg("exit execution failed")
			continue
		}
		exit.Execution = res
		results = append(results, exit)
	}
	return results
}

func evaluateExit(plan domain.TradePlan, pos domain.Position, price float64) (domain.ExitResult, bool) {
	isLong := plan.Side == domain.SideBuy
	hitStop := (isLong && price <= plan.StopLoss) || (!isLong && price >= plan.StopLoss)
	hitTarget2 := (isLong && price >= plan.Target2) || (!isLong && price <= plan.Target2)
	hitTarget1 := (isLong && price >= plan.Target1) || (!isLong && price <= plan.Target1)

	qty := int(pos.Quantity)
	switch {
	case hitStop:
		return domain.ExitResult{Symbol: pos.Symbol, Reason: "stop_loss", QuantitySold: qty}, true
	case hitTarget2:
		return domain.ExitResult{Symbol: pos.Symbol, Reason: "target_2", QuantitySold: qty}, true
	case hitTarget1:
		half := qty / 2
		if half < 1 {
			half = qty
		}
		return domain.ExitResult{Symbol: pos.Symbol, Reason: "target_1", QuantitySold: half, ScaleOut: half < qty}, true
	default:
		return domain.ExitResult{}, false
	}
}

func (e *Executor) place(plan domain.TradePlan, retry func(func() error) error) (domain.ExecutionResult, error) {
	if e.mode == ModePaper {
		return domain.ExecutionResult{
			Success: true, OrderID: "PAPER-" + uuid.NewString(), Symbol: plan.Symbol, Side: plan.Side,
			Quantity: plan.Quantity, Price: plan.Entry, PaperTrade: true,
		}, nil
	}

	req := domain.PlaceOrderRequest{
		Side: plan.Side, Quantity: plan.Quantity, OrderType: plan.OrderType, Price: plan.Entry,
		TriggerPrice: plan.StopLoss, Product: plan.Product, Validity: "DAY", Tag: "autotrader",
	}
	var orderID string
	err := retry(func() error {
		id, err := e.broker.PlaceOrder(req)
		if err != nil {
			return err
		}
		orderID = id
		return nil
	})
	if err != nil {
		return domain.ExecutionResult{Success: false, Symbol: plan.Symbol, Side: plan.Side, Reason: err.Error()}, err
	}
	return domain.ExecutionResult{
		Success: true, OrderID: orderID, Symbol: plan.Symbol, Side: plan.Side, Quantity: plan.Quantity, Price: plan.Entry,
	}, nil
}

// retryLinear retries fn up to maxAttempts times with a linearly
// increasing delay (attempt * retryBaseDelay), matching the teacher's
// order-path retry convention (a gentle linear policy, since an
// over-eager retry on a rejected order risks a duplicate fill). Only
// retryable errors are retried; any other error is returned at once.
func retryLinear(fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isRetryable(err) {
			return err
		}
		time.Sleep(retryBaseDelay * time.Duration(attempt))
	}
	return lastErr
}

func isRetryable(err error) bool {
	return errors.Is(err, errs.ErrTransient)
}

func (e *Executor) enqueuePending(pred domain.PendingPrediction) error {
	var c pendingCatalog
	return e.pending.Update(&c, func() error {
		if c.Pending == nil {
			c.Pending = make(map[string][]domain.PendingPrediction)
		}
		key := string(pred.Ticker)
		c.Pending[key] = append(c.Pending[key], pred)
		return nil
	})
}

func (e *Executor) dequeueOldestPending(ticker domain.Ticker) (domain.PendingPrediction, bool, error) {
	var c pendingCatalog
	var result domain.PendingPrediction
	var found bool
	err := e.pending.Update(&c, func() error {
		key := string(ticker)
		queue := c.Pending[key]
		if len(queue) == 0 {
			return nil
		}
		result, found = queue[0], true
		c.Pending[key] = queue[1:]
		return nil
	})
	return result, found, err
}
