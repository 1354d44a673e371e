package breaker

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
			t.Fatalf("call %d: expected the call error, got %v", i, err)
		}
	}

	called := false
	if err := b.Do(func() error { called = true; return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("open circuit must not invoke the call")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	b := New(2, time.Minute)

	for i := 0; i < 5; i++ {
		b.Do(func() error { return errBoom })
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("round %d: unexpected error: %v", i, err)
		}
	}
	if b.state != closed {
		t.Errorf("expected closed after alternating results, got state %d", b.state)
	}
}

func TestClosesAfterProbeSuccesses(t *testing.T) {
	b := New(1, 5*time.Millisecond)

	b.Do(func() error { return errBoom })
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen during cooldown, got %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	for i := 0; i < probeSuccesses; i++ {
		if err := b.Do(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: unexpected error: %v", i, err)
		}
	}
	if b.state != closed {
		t.Errorf("expected closed after %d probe successes, got state %d", probeSuccesses, b.state)
	}
}

func TestFailedProbeReopens(t *testing.T) {
	b := New(1, 5*time.Millisecond)

	b.Do(func() error { return errBoom })
	time.Sleep(10 * time.Millisecond)

	if err := b.Do(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Fatalf("expected the probe to run, got %v", err)
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen after failed probe, got %v", err)
	}
}
