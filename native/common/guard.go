package common

import "errors"

// ErrActionPaused is returned by Guard when the authority has tripped the
// circuit breaker for an action.
var ErrActionPaused = errors.New("action paused")

// PauseView reports per-action circuit breaker state.
type PauseView interface {
	IsPaused(action string) bool
}

// Guard fails with ErrActionPaused when action is paused in p. A nil view
// never blocks.
func Guard(p PauseView, action string) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}
