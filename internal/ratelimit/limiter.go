// Package ratelimit provides a rolling-window rate limiter shared by all
// provider clients. Admission never fails; callers queue in arrival order
// until capacity frees.
package ratelimit

import (
	"context"
	"time"
)

// Default configuration values.
const (
	DefaultCeiling = 20
	DefaultWindow  = 1 * time.Second
)

// Limiter admits at most ceiling tasks per rolling window, and caps
// in-flight tasks at the same ceiling. A slot is held for the duration of
// the task and for one full window after admission, whichever ends later,
// so no rolling window ever sees more than ceiling admissions.
type Limiter struct {
	window time.Duration
	slots  chan struct{}
}

// New creates a Limiter with the given admission ceiling per window.
// Non-positive values fall back to the defaults.
func New(ceiling int, window time.Duration) *Limiter {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window: window,
		slots:  make(chan struct{}, ceiling),
	}
}

// Execute runs fn once a slot is available. It blocks until admission or
// until ctx is done; it never rejects an admitted task. The error returned
// is fn's own error, or the context error if admission was abandoned.
func (l *Limiter) Execute(ctx context.Context, fn func() error) error {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	admitted := time.Now()
	err := fn()

	// Release the slot one full window after admission. If fn outlived
	// the window, release immediately.
	if hold := l.window - time.Since(admitted); hold > 0 {
		time.AfterFunc(hold, func() { <-l.slots })
	} else {
		<-l.slots
	}

	return err
}
