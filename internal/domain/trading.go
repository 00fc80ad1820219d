package domain

import "time"

// TradingType is the holding-horizon classification that drives level
// adjustment in the TradePlanner (spec §4.7).
type TradingType string

const (
	Intraday        TradingType = "INTRADAY"
	Swing           TradingType = "SWING"
	PositionTrading TradingType = "POSITION"
)

// Product is the broker product classification.
type Product string

const (
	ProductIntraday Product = "INTRADAY"
	ProductDelivery Product = "DELIVERY"
)

// OrderType is the broker order type.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
)

// Side is the trade direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PlanStatus is the lifecycle state of a TradePlan.
type PlanStatus string

const (
	PlanDraft     PlanStatus = "DRAFT"
	PlanApproved  PlanStatus = "APPROVED"
	PlanExecuted  PlanStatus = "EXECUTED"
	PlanCancelled PlanStatus = "CANCELLED"
)

// TradePlan is a snapshot of an actionable intention. It is immutable
// except for Status and OrderID once created (spec §3).
type TradePlan struct {
	ID               string
	Symbol           Ticker
	Side             Side
	Quantity         int
	Entry            float64
	StopLoss         float64
	Target1          float64
	Target2          float64
	RiskAmount       float64
	RiskRewardRatio  float64
	OrderType        OrderType
	Product          Product
	TradingType      TradingType
	CapitalRequired  float64
	MaxLoss          float64
	Status           PlanStatus
	OrderID          string
	Warnings         []string
	CreatedAt        time.Time
}

// Position mirrors a broker-owned position. The broker is the source of
// truth; this is a read-through cache (spec §3).
type Position struct {
	Symbol      Ticker
	Quantity    float64
	AveragePrice float64
	CurrentPrice float64
	Product     Product
	EntryTs     time.Time
}

// MarketValue returns quantity * current price.
func (p Position) MarketValue() float64 { return p.Quantity * p.CurrentPrice }

// UnrealizedPnL returns the mark-to-market profit or loss on the position.
func (p Position) UnrealizedPnL() float64 { return p.Quantity * (p.CurrentPrice - p.AveragePrice) }

// PendingPrediction is queued when a BUY executes and resolved when the
// matching position closes, feeding the model registry's accuracy
// metrics (spec §3).
type PendingPrediction struct {
	ModelID    string
	Ticker     Ticker
	Probability float64
	EntryPrice  float64
	Ts          time.Time
}

// ResolvedPrediction is a PendingPrediction scored against a realized
// outcome.
type ResolvedPrediction struct {
	PendingPrediction
	ExitPrice     float64
	RealizedReturn float64
	// Correct is nil for HOLD-adjacent predictions that were never
	// evaluated; spec §9 chooses HOLD is never counted in accuracy, so
	// this is only ever set for BUY/SELL outcomes.
	Correct *bool
	ResolvedAt time.Time
}

// CircuitBreakerState is process-wide and reset at day start (spec §3).
type CircuitBreakerState struct {
	Triggered         bool
	TriggeredAt       time.Time
	ConsecutiveLosses int
	DailyPnL          float64
	CooldownEnd       time.Time
}

// ExecutionResult is the outcome of a TradeExecutor order placement.
type ExecutionResult struct {
	Success    bool
	OrderID    string
	Symbol     Ticker
	Side       Side
	Quantity   int
	Price      float64
	PaperTrade bool
	Reason     string
}

// ModifyResult is the outcome of a stop-loss modification.
type ModifyResult struct {
	Success bool
	OrderID string
	Reason  string
}

// ExitResult is one emitted exit from CheckAndExitPositions.
type ExitResult struct {
	Symbol       Ticker
	Reason       string // "target_1", "target_2", "stop_loss"
	QuantitySold int
	ScaleOut     bool // true for the target-1 50% scale-out
	Execution    ExecutionResult
}
