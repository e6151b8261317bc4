package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFetch = errors.New("fetch failed")

func testBreaker(timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
	})
}

func fail(cb *CircuitBreaker) error {
	_, err := ExecuteWithResult(cb, context.Background(), func() (int, error) {
		return 0, errFetch
	})
	return err
}

func succeed(cb *CircuitBreaker) error {
	_, err := ExecuteWithResult(cb, context.Background(), func() (int, error) {
		return 1, nil
	})
	return err
}

func TestCircuitBreakerPassesResults(t *testing.T) {
	cb := testBreaker(time.Minute)

	v, err := ExecuteWithResult(cb, context.Background(), func() (float64, error) {
		return 180.52, nil
	})
	if err != nil {
		t.Fatalf("ExecuteWithResult: %v", err)
	}
	if v != 180.52 {
		t.Errorf("result = %v, want 180.52", v)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := testBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		if err := fail(cb); !errors.Is(err, errFetch) {
			t.Fatalf("failure %d returned %v", i, err)
		}
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	if err := succeed(cb); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("open circuit returned %v, want ErrCircuitOpen", err)
	}
	if cb.Stats().TotalRejected != 1 {
		t.Errorf("rejected = %d, want 1", cb.Stats().TotalRejected)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(time.Minute)

	fail(cb)
	fail(cb)
	succeed(cb)
	fail(cb)
	fail(cb)

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed while failures stay under threshold", cb.State())
	}
}

func TestCircuitBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		fail(cb)
	}
	time.Sleep(20 * time.Millisecond)

	// First request after the timeout probes the source.
	if err := succeed(cb); err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open after one probe", cb.State())
	}
	if err := succeed(cb); err != nil {
		t.Fatalf("second probe: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed after success threshold", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		fail(cb)
	}
	time.Sleep(20 * time.Millisecond)
	fail(cb)

	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want open after half-open failure", cb.State())
	}
}

func TestCircuitBreakerContextCancellation(t *testing.T) {
	cb := testBreaker(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)
	_, err := ExecuteWithResult(cb, ctx, func() (int, error) {
		<-block
		return 0, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled execute returned %v, want context.Canceled", err)
	}
	if cb.Stats().TotalFailures != 1 {
		t.Errorf("cancellation not counted as failure: %+v", cb.Stats())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := testBreaker(time.Minute)
	for i := 0; i < 3; i++ {
		fail(cb)
	}
	cb.Reset()

	if cb.State() != CircuitClosed {
		t.Errorf("state after Reset = %v, want closed", cb.State())
	}
	if err := succeed(cb); err != nil {
		t.Errorf("execute after Reset: %v", err)
	}
}
