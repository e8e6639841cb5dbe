package sink

import (
	"context"
	"errors"
	"time"
)

// Retrier wraps delivery calls with backoff. Bounded by default; Infinite
// mode keeps retrying transient failures until ctx is canceled, for
// operations that must eventually succeed (finalizing a turn).
type Retrier struct {
	MaxAttempts int // ignored when Infinite
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Infinite    bool
}

// DefaultRetrier is the bounded policy used for normal deliveries.
func DefaultRetrier() Retrier {
	return Retrier{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// retryable reports whether an error is worth another attempt. Not-found
// and auth failures are terminal: retrying cannot change the outcome.
func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUnauthorized) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do runs fn until it succeeds, fails terminally, or attempts run out.
func (r Retrier) Do(ctx context.Context, fn func() error) error {
	delay := r.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}
	maxDelay := r.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	attempt := 0
	for {
		err := fn()
		if err == nil {
			return nil
		}
		attempt++
		if !retryable(err) {
			return err
		}
		if !r.Infinite && attempt >= r.MaxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
