package server

import "time"

// staleTicks is how many poll intervals may pass without a tick before /readyz fails.
const staleTicks = 3

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	trk Tracker
	now func() time.Time
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(trk Tracker) *Handlers {
	return &Handlers{trk: trk, now: time.Now}
}
