package sink

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetrier_RecoversFromTransientFailure(t *testing.T) {
	r := Retrier{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ErrRateLimited
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetrier_ExhaustsAttempts(t *testing.T) {
	r := Retrier{MaxAttempts: 2, BaseDelay: time.Millisecond}

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetrier_TerminalErrorsNotRetried(t *testing.T) {
	r := Retrier{MaxAttempts: 5, BaseDelay: time.Millisecond}

	for _, terminal := range []error{ErrNotFound, ErrUnauthorized} {
		calls := 0
		err := r.Do(context.Background(), func() error {
			calls++
			return terminal
		})
		if !errors.Is(err, terminal) {
			t.Errorf("err = %v, want %v", err, terminal)
		}
		if calls != 1 {
			t.Errorf("calls = %d for %v, want 1", calls, terminal)
		}
	}
}

func TestRetrier_CancelStopsInfinite(t *testing.T) {
	r := Retrier{Infinite: true, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, func() error {
		calls++
		if calls == 3 {
			cancel()
		}
		return ErrRateLimited
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
