package circuitbreaker

import (
	"fmt"
	"testing"
	"time"
)

func newTestBreaker(maxFailures int, timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(&Config{
		Name:             "test",
		MaxFailures:      maxFailures,
		Timeout:          timeout,
		HalfOpenMaxCalls: 2,
	})
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)

	for i := 0; i < 10; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want %s", cb.GetState(), StateClosed)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	boom := fmt.Errorf("rpc down")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return boom })
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want %s", cb.GetState(), StateOpen)
	}

	err := cb.Execute(func() error {
		t.Error("the protected call must not run while open")
		return nil
	})
	if err != ErrCircuitOpen {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsFailureStreak(t *testing.T) {
	cb := newTestBreaker(3, time.Minute)
	boom := fmt.Errorf("rpc down")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })

	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want %s after an interleaved success", cb.GetState(), StateClosed)
	}
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newTestBreaker(2, 10*time.Millisecond)
	boom := fmt.Errorf("rpc down")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })
	if cb.GetState() != StateOpen {
		t.Fatalf("state = %s, want %s", cb.GetState(), StateOpen)
	}

	time.Sleep(20 * time.Millisecond)

	// Two successful probes close the circuit.
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe 1 failed: %v", err)
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe 2 failed: %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Errorf("state = %s, want %s after recovery", cb.GetState(), StateClosed)
	}
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newTestBreaker(2, 10*time.Millisecond)
	boom := fmt.Errorf("rpc down")

	_ = cb.Execute(func() error { return boom })
	_ = cb.Execute(func() error { return boom })

	time.Sleep(20 * time.Millisecond)

	_ = cb.Execute(func() error { return boom })
	if cb.GetState() != StateOpen {
		t.Errorf("state = %s, want %s after a failed probe", cb.GetState(), StateOpen)
	}
}
