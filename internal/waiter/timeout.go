// File: internal/waiter/timeout.go
package waiter

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
)

// PromiseTimeoutError reports that a raced operation did not settle in time.
type PromiseTimeoutError struct {
	After time.Duration
}

func (e *PromiseTimeoutError) Error() string {
	if e.After > 0 {
		return fmt.Sprintf("promise timed out after %s", e.After)
	}
	return "promise timed out"
}

// Is lets errors.Is(err, ErrTimeout) succeed.
func (e *PromiseTimeoutError) Is(target error) bool { return target == ErrTimeout }

// After returns a channel that receives a *PromiseTimeoutError once d has
// elapsed on clock. When d <= 0 the channel never receives, and no goroutine
// is started. Cancelling ctx abandons the timer.
func After(ctx context.Context, clock clockwork.Clock, d time.Duration) <-chan error {
	ch := make(chan error, 1)
	if d <= 0 {
		return ch
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	timer := clock.NewTimer(d)
	go func() {
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.Chan():
			ch <- &PromiseTimeoutError{After: d}
		}
	}()
	return ch
}

// Race runs fn and returns its result, unless d elapses first, in which case
// fn's context is cancelled and a *PromiseTimeoutError is returned.
func Race[T any](ctx context.Context, clock clockwork.Clock, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case res := <-done:
		return res.value, res.err
	case err := <-After(ctx, clock, d):
		return zero, err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
