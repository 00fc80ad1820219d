// Package scheduler drives the trading day's cron schedule and tracks
// market session state, grounded on the teacher's
// internal/market_regime/market_state.go cascading session detection and
// internal/queue/scheduler.go goroutine-per-job lifecycle.
package scheduler

import (
	"time"
)

// Session is the market session band for a given instant.
type Session string

const (
	SessionPreMarket  Session = "PRE_MARKET"
	SessionOpen       Session = "OPEN"
	SessionPostMarket Session = "POST_MARKET"
	SessionClosed     Session = "CLOSED"
)

// NSE/BSE equity session times, IST, expressed as minutes since midnight.
const (
	preMarketOpenMin = 9*60 + 0
	marketOpenMin    = 9*60 + 15
	marketCloseMin   = 15*60 + 30
	postMarketEndMin = 16 * 60
)

func minutesSinceMidnight(t time.Time) int {
	h, m, _ := t.Clock()
	return h*60 + m
}

// MarketHoursManager classifies instants into session bands and tracks
// the exchange holiday calendar.
type MarketHoursManager struct {
	holidays map[string]bool // "2026-01-26" style keys, per exchange-independent NSE/BSE calendar
	loc      *time.Location
}

// NewMarketHoursManager returns a manager using loc for session-band
// arithmetic (pass the market's local timezone, e.g. Asia/Kolkata).
func NewMarketHoursManager(loc *time.Location, holidays []string) *MarketHoursManager {
	m := &MarketHoursManager{holidays: make(map[string]bool, len(holidays)), loc: loc}
	for _, h := range holidays {
		m.holidays[h] = true
	}
	return m
}

// IsHoliday reports whether t's calendar date is a market holiday.
func (m *MarketHoursManager) IsHoliday(t time.Time) bool {
	return m.holidays[t.In(m.loc).Format("2006-01-02")]
}

// GetMarketStatus classifies now into a session band. Weekends and
// configured holidays are always CLOSED regardless of time of day.
func (m *MarketHoursManager) GetMarketStatus(now time.Time) Session {
	local := now.In(m.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday || m.IsHoliday(local) {
		return SessionClosed
	}
	minutes := minutesSinceMidnight(local)
	switch {
	case minutes >= preMarketOpenMin && minutes < marketOpenMin:
		return SessionPreMarket
	case minutes >= marketOpenMin && minutes < marketCloseMin:
		return SessionOpen
	case minutes >= marketCloseMin && minutes < postMarketEndMin:
		return SessionPostMarket
	default:
		return SessionClosed
	}
}

// IsMarketOpen reports whether now falls within the OPEN session.
func (m *MarketHoursManager) IsMarketOpen(now time.Time) bool {
	return m.GetMarketStatus(now) == SessionOpen
}

// ShouldCheckMarketHours is a light pre-filter scan loops call before
// doing any real work: true whenever the session isn't flatly CLOSED.
func (m *MarketHoursManager) ShouldCheckMarketHours(now time.Time) bool {
	return m.GetMarketStatus(now) != SessionClosed
}
