// Package retry implements the bounded-retry-with-backoff helper used around
// flaky remote lookups. The backoff between attempts grows linearly with the
// attempt number and is capped. Attempt counters are kept per operation name
// for the duration of the call only, so unrelated calls sharing a name never
// observe each other's counts.
package retry

import (
	"context"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/carelinkhq/carelink/internal/logging"
)

const (
	// DefaultAttempts is the total number of attempts (first try included).
	DefaultAttempts = 3

	// DefaultBase is the backoff unit: the wait after attempt n is base*n.
	DefaultBase = time.Second

	// DefaultCap bounds the backoff regardless of attempt number.
	DefaultCap = 3 * time.Second
)

// Options configures a Retrier. Zero fields fall back to the defaults above.
type Options struct {
	Attempts int
	Base     time.Duration
	Cap      time.Duration
	Logger   logging.Logger
}

// Retrier applies a shared retry policy to named operations.
type Retrier struct {
	attempts int
	base     time.Duration
	cap      time.Duration
	log      logging.Logger

	mu       sync.Mutex
	inflight map[string]int
}

func New(opts Options) *Retrier {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.Base <= 0 {
		opts.Base = DefaultBase
	}
	if opts.Cap <= 0 {
		opts.Cap = DefaultCap
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &Retrier{
		attempts: opts.Attempts,
		base:     opts.Base,
		cap:      opts.Cap,
		log:      opts.Logger,
		inflight: make(map[string]int),
	}
}

// Attempts reports the current attempt count for the named operation.
// It is zero whenever no call with that name is in flight.
func (r *Retrier) Attempts(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[name]
}

func (r *Retrier) bump(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[name]++
	return r.inflight[name]
}

func (r *Retrier) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, name)
}

// backoff returns a linear, capped backoff: base*1, base*2, ... bounded by cap.
func (r *Retrier) backoff() retry.Backoff {
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		attempt++
		d := r.base * time.Duration(attempt)
		if d > r.cap {
			d = r.cap
		}
		return d, false
	})
}

// Do runs op under the retrier's policy. On the first success it returns the
// result and true. After exhausting all attempts (or when ctx is cancelled)
// it returns the zero value and false; the last error is logged, not
// returned, because callers treat exhaustion as "value unknown" and proceed
// degraded.
func Do[T any](ctx context.Context, r *Retrier, name string, op func(ctx context.Context) (T, error)) (T, bool) {
	var result T
	defer r.release(name)

	b := retry.WithMaxRetries(uint64(r.attempts-1), r.backoff())

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt := r.bump(name)
		v, err := op(ctx)
		if err != nil {
			r.log.Debug(ctx, "operation attempt failed",
				"operation", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		result = v
		return nil
	})
	if err != nil {
		r.log.Warn(ctx, "operation exhausted retries", "operation", name, "error", err)
		var zero T
		return zero, false
	}
	return result, true
}
