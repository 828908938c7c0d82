// Package lifecycle drives a match from creation through score reports
// and forfeits to a terminal state.
package lifecycle

import "time"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock replaces the engine's time source, for reproducible tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}
