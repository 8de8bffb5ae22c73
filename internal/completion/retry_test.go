package completion

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SuccessFirstAttempt(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastPolicy(3), func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("expected 1 attempt, got %d (calls %d)", attempts, calls)
	}
}

func TestRetry_AttemptNumbersAreOneBased(t *testing.T) {
	var seen []int
	_, err := Retry(context.Background(), fastPolicy(3), func(attempt int) error {
		seen = append(seen, attempt)
		return &RetryableError{Err: errors.New("temporary")}
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("unexpected attempt numbers %v", seen)
	}
}

func TestRetry_ReturnsLastErrorWhenExhausted(t *testing.T) {
	last := errors.New("third failure")
	attempts, err := Retry(context.Background(), fastPolicy(3), func(attempt int) error {
		if attempt == 3 {
			return &RetryableError{Err: last}
		}
		return &RetryableError{Err: errors.New("earlier failure")}
	})

	if !errors.Is(err, last) {
		t.Fatalf("expected last error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestRetry_NonRetryableError(t *testing.T) {
	calls := 0
	attempts, err := Retry(context.Background(), fastPolicy(3), func(attempt int) error {
		calls++
		return errors.New("non-retryable error")
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got %d", calls)
	}
}

func TestRetry_ContextCancellationDuringBackoff(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	calls := 0
	start := time.Now()
	_, err := Retry(ctx, policy, func(attempt int) error {
		calls++
		return &RetryableError{Err: errors.New("retryable error")}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", calls)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff was not interrupted by the context")
	}
}

func TestRetry_RetryAfterHintIsCapped(t *testing.T) {
	policy := fastPolicy(2)
	start := time.Now()

	_, _ = Retry(context.Background(), policy, func(attempt int) error {
		return &RetryableError{Err: errors.New("slow down"), RetryAfter: time.Minute}
	})

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("retry-after hint was not capped by MaxBackoff: waited %v", elapsed)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"regular error", errors.New("regular"), false},
		{"retryable error", &RetryableError{Err: errors.New("retry")}, true},
		{"wrapped retryable", errors.Join(errors.New("ctx"), &RetryableError{Err: errors.New("retry")}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.expected {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCalculateBackoff(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		BackoffFactor:  2.0,
	}

	tests := []struct {
		retry    int
		expected time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{6, 8 * time.Second},
	}

	for _, tt := range tests {
		if got := calculateBackoff(policy, tt.retry); got != tt.expected {
			t.Errorf("retry %d: expected %v, got %v", tt.retry, tt.expected, got)
		}
	}
}

func TestCalculateBackoffJitterStaysWithinTenPercent(t *testing.T) {
	policy := RetryPolicy{
		InitialBackoff: time.Second,
		MaxBackoff:     time.Second,
		BackoffFactor:  2.0,
		Jitter:         true,
	}

	for i := 0; i < 100; i++ {
		got := calculateBackoff(policy, 0)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered backoff %v outside +/-10%%", got)
		}
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	policy := DefaultRetryPolicy()

	if policy.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", policy.MaxAttempts)
	}
	if policy.InitialBackoff != 500*time.Millisecond {
		t.Errorf("expected InitialBackoff=500ms, got %v", policy.InitialBackoff)
	}
	if !policy.Jitter {
		t.Error("expected Jitter=true")
	}
}

func TestRetryableErrorMessage(t *testing.T) {
	err := &RetryableError{Err: errors.New("test error")}
	if err.Error() != "test error" {
		t.Errorf("unexpected error message: %s", err.Error())
	}

	withDelay := &RetryableError{Err: errors.New("test error"), RetryAfter: 5 * time.Second}
	if withDelay.Error() != "test error (retry after 5s)" {
		t.Errorf("unexpected error message: %s", withDelay.Error())
	}
}
