// Package nav models navigation as explicit intents so the session layer can
// redirect without knowing what renders the routes. A Guard wraps any Sink to
// absorb the duplicate redirects a burst of auth events can produce.
package nav

import (
	"context"
	"sync"
	"time"
)

// Intent is a single navigation request.
type Intent struct {
	// Path is the destination route.
	Path string

	// Replace asks the sink to replace the current history entry instead of
	// pushing a new one. Auth redirects use this so Back does not bounce
	// through transient states.
	Replace bool

	// Force bypasses the guard's duplicate suppression, for user-initiated
	// navigation that must always happen.
	Force bool
}

// Sink receives navigation intents. The terminal client prints them; a
// browser shell would drive its router.
type Sink interface {
	Navigate(ctx context.Context, intent Intent)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, intent Intent)

func (f SinkFunc) Navigate(ctx context.Context, intent Intent) { f(ctx, intent) }

// DefaultCoolDown is how long a repeated redirect to the same path is
// suppressed after the first one.
const DefaultCoolDown = 500 * time.Millisecond

// Guard suppresses redirects that would re-target the path just navigated to
// within the cool-down window. Distinct paths always pass through.
type Guard struct {
	sink     Sink
	coolDown time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastPath string
	lastAt   time.Time
}

// GuardOption customizes a Guard.
type GuardOption func(*Guard)

// WithCoolDown overrides the duplicate-suppression window.
func WithCoolDown(d time.Duration) GuardOption {
	return func(g *Guard) { g.coolDown = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

func NewGuard(sink Sink, opts ...GuardOption) *Guard {
	g := &Guard{sink: sink, coolDown: DefaultCoolDown, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Navigate forwards the intent unless it repeats the previous path within
// the cool-down window. Forced intents always pass.
func (g *Guard) Navigate(ctx context.Context, intent Intent) {
	g.mu.Lock()
	now := g.now()
	duplicate := intent.Path == g.lastPath && now.Sub(g.lastAt) < g.coolDown
	if duplicate && !intent.Force {
		g.mu.Unlock()
		return
	}
	g.lastPath = intent.Path
	g.lastAt = now
	g.mu.Unlock()

	g.sink.Navigate(ctx, intent)
}
