package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}, func() (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("Retry() returned unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want %q", got, "ok")
	}
	if calls != 1 {
		t.Errorf("operation invoked %d times, want 1", calls)
	}
}

func TestRetry_SuccessAfterFailures(t *testing.T) {
	// Fails k < maxAttempts times, then succeeds: invoked k+1 times.
	calls := 0
	got, err := Retry(context.Background(), RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 8 * time.Millisecond}, func() (int, error) {
		calls++
		if calls <= 2 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Retry() returned unexpected error: %v", err)
	}
	if got != 42 {
		t.Errorf("result = %d, want 42", got)
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
}

func TestRetry_Exhaustion(t *testing.T) {
	// Always fails: invoked exactly MaxAttempts times, final error unchanged.
	final := errors.New("still broken")
	calls := 0
	_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}, func() (struct{}, error) {
		calls++
		return struct{}{}, final
	})
	if calls != 4 {
		t.Errorf("operation invoked %d times, want 4", calls)
	}
	if !errors.Is(err, final) {
		t.Errorf("err = %v, want the original error unchanged", err)
	}
}

func TestRetry_EveryErrorKindRetried(t *testing.T) {
	// The combinator does not consult Retryable: a non-retryable request
	// error is retried exactly like a transient network error.
	tests := []struct {
		name string
		err  error
	}{
		{"network", NewNetworkError(errors.New("connect refused"))},
		{"request", NewRequestError(400, "bad request")},
		{"decode", NewDecodeError(errors.New("bad shape"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}, func() (struct{}, error) {
				calls++
				return struct{}{}, tt.err
			})
			if calls != 3 {
				t.Errorf("operation invoked %d times, want 3", calls)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("err = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestRetry_BackoffSchedule(t *testing.T) {
	// base=100ms, max=800ms: delays follow min(base*2^(n-1), max).
	b := newExponential(RetryConfig{MaxAttempts: 6, BaseDelay: 100 * time.Millisecond, MaxDelay: 800 * time.Millisecond})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		800 * time.Millisecond,
	}
	for i, expected := range want {
		if got := b.NextBackOff(); got != expected {
			t.Errorf("delay %d = %v, want %v", i+1, got, expected)
		}
	}
}

func TestRetry_ObservedDelays(t *testing.T) {
	// End-to-end check that the sleeps actually follow the schedule.
	base := 20 * time.Millisecond
	calls := 0
	start := time.Now()
	_, _ = Retry(context.Background(), RetryConfig{MaxAttempts: 3, BaseDelay: base, MaxDelay: 200 * time.Millisecond}, func() (struct{}, error) {
		calls++
		return struct{}{}, errors.New("always")
	})
	elapsed := time.Since(start)

	// Two sleeps: 20ms + 40ms.
	if minTotal := 60 * time.Millisecond; elapsed < minTotal {
		t.Errorf("elapsed = %v, want at least %v", elapsed, minTotal)
	}
	if calls != 3 {
		t.Errorf("operation invoked %d times, want 3", calls)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, RetryConfig{MaxAttempts: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}, func() (struct{}, error) {
			calls++
			return struct{}{}, errors.New("failing")
		})
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Retry() returned nil after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Retry() did not abort after context cancellation")
	}
	if calls >= 10 {
		t.Errorf("operation invoked %d times despite cancellation", calls)
	}
}

func TestRetryConfig_Defaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.MaxAttempts != defaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, defaultMaxAttempts)
	}
	if cfg.BaseDelay != defaultBaseDelay {
		t.Errorf("BaseDelay = %v, want %v", cfg.BaseDelay, defaultBaseDelay)
	}
	if cfg.MaxDelay != defaultMaxDelay {
		t.Errorf("MaxDelay = %v, want %v", cfg.MaxDelay, defaultMaxDelay)
	}
}
