package backoff

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errAlways = errors.New("always fails")

func fastStrategy() Strategy {
	return Strategy{Delays: []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastStrategy(), func(ctx context.Context, attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastStrategy(), func(ctx context.Context, attempt int) error {
		calls++
		if calls < 3 {
			return errAlways
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsSchedule(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastStrategy(), func(ctx context.Context, attempt int) error {
		calls++
		return errAlways
	})
	if !errors.Is(err, errAlways) {
		t.Errorf("expected wrapped errAlways, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Strategy{Delays: []time.Duration{time.Hour}}, func(ctx context.Context, attempt int) error {
		calls++
		cancel()
		return errAlways
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithCallbackReportsAttempts(t *testing.T) {
	var attempts []int
	_ = RetryWithCallback(context.Background(), fastStrategy(), func(ctx context.Context, attempt int) error {
		return errAlways
	}, func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	})
	if len(attempts) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(attempts))
	}
	if attempts[0] != 1 || attempts[2] != 3 {
		t.Errorf("unexpected attempt sequence: %v", attempts)
	}
}
