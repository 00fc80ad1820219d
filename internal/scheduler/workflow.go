package scheduler

import "sync"

// WorkflowState is the DailyWorkflow's progress through the trading day.
type WorkflowState string

const (
	WorkflowIdle                WorkflowState = "idle"
	WorkflowPreMarketCompleted  WorkflowState = "pre_market_completed"
	WorkflowMarketHoursActive   WorkflowState = "market_hours_active"
	WorkflowPostMarketCompleted WorkflowState = "post_market_completed"
)

// DailyWorkflow tracks which of the day's three phases have run, so a
// restart mid-day doesn't repeat or skip a phase's one-time setup work
// (spec §4.10).
type DailyWorkflow struct {
	mu    sync.Mutex
	state WorkflowState
	day   string // "2026-01-26", reset point for the state machine
}

// NewDailyWorkflow returns a workflow starting idle.
func NewDailyWorkflow() *DailyWorkflow {
	return &DailyWorkflow{state: WorkflowIdle}
}

// State returns the current phase.
func (w *DailyWorkflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// BeginDay resets the workflow for a new trading day if day differs from
// the last-seen day.
func (w *DailyWorkflow) BeginDay(day string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.day != day {
		w.day = day
		w.state = WorkflowIdle
	}
}

// CompletePreMarket advances idle -> pre_market_completed.
func (w *DailyWorkflow) CompletePreMarket() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WorkflowIdle {
		w.state = WorkflowPreMarketCompleted
	}
}

// BeginMarketHours advances pre_market_completed -> market_hours_active.
func (w *DailyWorkflow) BeginMarketHours() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WorkflowPreMarketCompleted {
		w.state = WorkflowMarketHoursActive
	}
}

// CompletePostMarket advances market_hours_active -> post_market_completed.
func (w *DailyWorkflow) CompletePostMarket() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == WorkflowMarketHoursActive {
		w.state = WorkflowPostMarketCompleted
	}
}
