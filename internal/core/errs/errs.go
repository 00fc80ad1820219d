// Package errs defines the closed set of error kinds the trading core
// distinguishes at component boundaries (spec §7). Components return
// errors wrapping one of these sentinels so callers can branch with
// errors.Is without depending on message text.
package errs

import "errors"

var (
	// ErrDataUnavailable means no source returned usable data. Callers
	// surface this as a degraded signal, never as a propagated failure
	// past the signal-generation boundary.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrTransient means a network timeout or 5xx; retried with backoff
	// by the caller before it is ever surfaced.
	ErrTransient = errors.New("transient failure")

	// ErrAuthFailure means a broker token was rejected. Not retried;
	// triggers a token-refresh attempt upstream.
	ErrAuthFailure = errors.New("authentication failure")

	// ErrValidationFailure means corrupted OHLCV or a failed pre-trade
	// rule. Never retried.
	ErrValidationFailure = errors.New("validation failure")

	// ErrConfiguration means required configuration is missing or
	// malformed. Fatal at startup only.
	ErrConfiguration = errors.New("configuration error")

	// ErrCircuitBreakerTripped is logical, not exceptional: every
	// execute-signal call checks this first and returns a structured
	// rejection rather than propagating an error up the stack.
	ErrCircuitBreakerTripped = errors.New("circuit breaker tripped")
)

// Wrap attaches msg as context to one of the sentinels above while
// keeping it errors.Is-comparable.
func Wrap(sentinel error, msg string) error {
	if msg == "" {
		return sentinel
	}
	return &wrapped{sentinel: sentinel, msg: msg}
}

type wrapped struct {
	sentinel error
	msg      string
}

func (w *wrapped) Error() string { return w.msg + ": " + w.sentinel.Error() }
func (w *wrapped) Unwrap() error { return w.sentinel }
