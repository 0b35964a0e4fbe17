package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kirillkom/anvesana/internal/core/domain"
	"github.com/sony/gobreaker/v2"
)

func fastRetry(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestExecuteRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(3)})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	}, func(err error) ErrorClassification {
		return Classify(err, func(err error) bool { return errors.Is(err, errTemp) })
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestExecuteDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(3)})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		attempts++
		return errPermanent
	}, nil)
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		Retry: fastRetry(1),
		Breaker: BreakerPolicy{
			Enabled:          true,
			MinRequests:      2,
			FailureRatio:     0.5,
			OpenTimeout:      50 * time.Millisecond,
			HalfOpenMaxCalls: 1,
		},
	})

	errTemp := errors.New("temporary")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errTemp
		}, nil)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}

	other := exec.Execute(context.Background(), "other", func(context.Context) error { return nil }, nil)
	if other != nil {
		t.Fatalf("breakers must be per operation, got %v", other)
	}
}

func TestExecuteRetriesAttemptTimeout(t *testing.T) {
	retry := fastRetry(2)
	retry.AttemptTimeout = 10 * time.Millisecond
	exec := NewExecutor(Config{Retry: retry})

	attempts := 0
	err := exec.Execute(context.Background(), "op", func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}, ClassifyHTTPError)
	if err != nil {
		t.Fatalf("expected success on second attempt, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestExecuteStopsOnCallerCancel(t *testing.T) {
	exec := NewExecutor(Config{Retry: fastRetry(5)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Execute(ctx, "op", func(context.Context) error {
		called = true
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("operation must not run after cancellation")
	}
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond, Multiplier: 2}
	cases := map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 300 * time.Millisecond,
		6: 300 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := p.Backoff(attempt); got != want {
			t.Fatalf("Backoff(%d) = %s, want %s", attempt, got, want)
		}
	}
}

func TestConfigNormalizeFillsDefaults(t *testing.T) {
	cfg := Config{Retry: RetryPolicy{MaxBackoff: time.Millisecond, InitialBackoff: time.Second}}.normalize()
	if cfg.Retry.MaxAttempts != 3 {
		t.Fatalf("expected default attempts, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.MaxBackoff != time.Second {
		t.Fatalf("max backoff must not fall below initial, got %s", cfg.Retry.MaxBackoff)
	}
	if cfg.Breaker.Enabled {
		t.Fatalf("breaker must stay disabled unless requested")
	}
	if cfg.Breaker.MinRequests != 10 || cfg.Breaker.HalfOpenMaxCalls != 2 {
		t.Fatalf("unexpected breaker defaults: %+v", cfg.Breaker)
	}
}

func TestClassify(t *testing.T) {
	transient := errors.New("flaky")
	isTransient := func(err error) bool { return errors.Is(err, transient) }

	cases := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{"nil", nil, ignored},
		{"canceled", context.Canceled, ignored},
		{"attempt timeout", errors.Join(ErrAttemptTimeout, context.DeadlineExceeded), retryable},
		{"open circuit", gobreaker.ErrOpenState, retryable},
		{"transient", transient, retryable},
		{"other", errors.New("bad"), permanent},
	}
	for _, tc := range cases {
		if got := Classify(tc.err, isTransient); got != tc.want {
			t.Fatalf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestWrapTemporaryFor(t *testing.T) {
	classify := func(err error) ErrorClassification { return Classify(err, func(error) bool { return true }) }
	err := WrapTemporaryFor("op", errors.New("flaky"), classify)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", err)
	}
	if got := WrapTemporaryFor("op", nil, classify); got != nil {
		t.Fatalf("nil must stay nil, got %v", got)
	}
	canceled := WrapTemporaryFor("op", context.Canceled, classify)
	if domain.IsKind(canceled, domain.ErrTemporary) {
		t.Fatalf("cancellation must not be tagged temporary")
	}
}
