package httpclient

import (
	"context"
	"testing"
	"time"
)

// instantSleeper resolves immediately, mirroring the retry tests' approach
// of never waiting on real time.
type instantSleeper struct {
	calls []time.Duration
}

func (s *instantSleeper) Sleep(ctx context.Context, d time.Duration) {
	s.calls = append(s.calls, d)
}

func TestRun_SucceedsOnThirdAttempt(t *testing.T) {
	sleeper := &instantSleeper{}
	attempts := 0

	result := Run(context.Background(), sleeper, 5, ConstantBackoff{Delay_: time.Millisecond}, func(ctx context.Context, attempt int) Attempt[int] {
		attempts++
		if attempts < 3 {
			return Attempt[int]{Verdict: RetryAttempt}
		}
		return Attempt[int]{Value: 42, Verdict: Success}
	})

	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeper.calls) != 2 {
		t.Fatalf("expected 2 sleeps between 3 attempts, got %d", len(sleeper.calls))
	}
}

func TestRun_ReturnsLastValueWhenRetriesExhausted(t *testing.T) {
	sleeper := &instantSleeper{}
	attempts := 0

	result := Run(context.Background(), sleeper, 2, ConstantBackoff{Delay_: time.Millisecond}, func(ctx context.Context, attempt int) Attempt[string] {
		attempts++
		return Attempt[string]{Value: "still failing", Verdict: RetryAttempt}
	})

	if result != "still failing" {
		t.Fatalf("expected last attempt's value, got %q", result)
	}
	if attempts != 3 {
		t.Fatalf("expected maxRetries+1=3 attempts, got %d", attempts)
	}
}

func TestRun_StopsImmediatelyOnFail(t *testing.T) {
	sleeper := &instantSleeper{}
	attempts := 0

	Run(context.Background(), sleeper, 5, ConstantBackoff{Delay_: time.Millisecond}, func(ctx context.Context, attempt int) Attempt[int] {
		attempts++
		return Attempt[int]{Verdict: Fail}
	})

	if attempts != 1 {
		t.Fatalf("expected a single attempt on Fail, got %d", attempts)
	}
}

func TestExponentialBackoff_Doubles(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second}
	if b.Delay(0) != time.Second {
		t.Fatalf("expected 1s, got %s", b.Delay(0))
	}
	if b.Delay(1) != 2*time.Second {
		t.Fatalf("expected 2s, got %s", b.Delay(1))
	}
	if b.Delay(3) != 8*time.Second {
		t.Fatalf("expected 8s, got %s", b.Delay(3))
	}
}
