package orchestrator

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          time.Minute,
	})

	if got := cb.State(); got != CircuitClosed {
		t.Fatalf("State() = %v, want %v", got, CircuitClosed)
	}

	for i := 0; i < 2; i++ {
		cb.Failure()
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() after 2 failures = %v, want %v", got, CircuitClosed)
	}

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Errorf("State() after 3 failures = %v, want %v", got, CircuitOpen)
	}
	if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Allow() while open = %v, want %v", err, ErrCircuitOpen)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		SuccessThreshold: 1,
		Timeout:          time.Minute,
	})

	cb.Failure()
	cb.Success()
	cb.Failure()
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() = %v, want %v (success should reset the count)", got, CircuitClosed)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("State() = %v, want %v", got, CircuitOpen)
	}

	time.Sleep(5 * time.Millisecond)

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil (probe)", err)
	}
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("State() = %v, want %v", got, CircuitHalfOpen)
	}

	cb.Success()
	if got := cb.State(); got != CircuitHalfOpen {
		t.Errorf("State() after 1 success = %v, want %v", got, CircuitHalfOpen)
	}
	cb.Success()
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() after 2 successes = %v, want %v", got, CircuitClosed)
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Millisecond,
	})

	cb.Failure()
	time.Sleep(5 * time.Millisecond)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil", err)
	}

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Errorf("State() after half-open failure = %v, want %v", got, CircuitOpen)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Minute})

	cb.Failure()
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("State() = %v, want %v", got, CircuitOpen)
	}

	cb.Reset()
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("State() after Reset() = %v, want %v", got, CircuitClosed)
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() after Reset() = %v, want nil", err)
	}
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state CircuitState
		want  string
	}{
		{CircuitClosed, "closed"},
		{CircuitOpen, "open"},
		{CircuitHalfOpen, "half-open"},
		{CircuitState(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", int(tt.state), got, tt.want)
		}
	}
}
