// File: internal/waiter/waiter.go
// Package waiter provides polling and timeout primitives used to defer work
// until an external readiness condition holds.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultTimeout is how long WaitFor polls before giving up.
	DefaultTimeout = 5000 * time.Millisecond
	// DefaultInterval is the spacing between condition evaluations.
	DefaultInterval = 100 * time.Millisecond
)

// ErrTimeout is matched (via errors.Is) by every timeout error in this package.
var ErrTimeout = errors.New("waiter: timed out")

// TimeoutError is returned by WaitFor when the predicate never held.
// Stack holds the goroutine stack captured at the moment the wait expired.
type TimeoutError struct {
	Timeout time.Duration
	Stack   []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("TIMEOUT: condition not met within %s", e.Timeout)
}

// Is lets errors.Is(err, ErrTimeout) succeed.
func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Option tunes a single WaitFor call.
type Option func(*config)

type config struct {
	timeout  time.Duration
	interval time.Duration
	clock    clockwork.Clock
}

// WithTimeout overrides DefaultTimeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithInterval overrides DefaultInterval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithClock injects the clock driving both timers.
func WithClock(clock clockwork.Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

func newConfig(opts []Option) config {
	c := config{
		timeout:  DefaultTimeout,
		interval: DefaultInterval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WaitFor evaluates condition until predicate(result) holds and returns that
// result. A nil predicate tests the result for truthiness (non-zero value).
//
// The condition runs once immediately, then on every interval tick. It must be
// cheap and safe to call repeatedly. Both internal timers are stopped on every
// return path.
func WaitFor[T any](ctx context.Context, condition func() T, predicate func(T) bool, opts ...Option) (T, error) {
	cfg := newConfig(opts)
	if predicate == nil {
		predicate = Truthy[T]
	}

	if result := condition(); predicate(result) {
		return result, nil
	}

	var zero T
	timeout := cfg.clock.NewTimer(cfg.timeout)
	defer timeout.Stop()
	ticker := cfg.clock.NewTicker(cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeout.Chan():
			return zero, &TimeoutError{Timeout: cfg.timeout, Stack: debug.Stack()}
		case <-ticker.Chan():
			if result := condition(); predicate(result) {
				return result, nil
			}
		}
	}
}

// Truthy reports whether v differs from the zero value of its dynamic type.
// An interface type argument is unwrapped first, so Truthy[any](false) and
// Truthy[any](nil) are both false.
func Truthy[T any](v T) bool {
	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return false
	}
	return !rv.IsZero()
}
