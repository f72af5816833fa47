package session

import (
	"context"
	"testing"
	"time"
)

func TestRetryPolicyResolves(t *testing.T) {
	p := RetryPolicy{Interval: 2 * time.Millisecond, MaxAttempts: 10}
	attempts := 0
	timedOut := false

	ok := p.Poll(context.Background(), func(attempt int) bool {
		attempts = attempt
		return attempt == 3
	}, func() { timedOut = true })

	if !ok {
		t.Error("expected poll to resolve")
	}
	if attempts != 3 {
		t.Errorf("expected resolution on attempt 3, got %d", attempts)
	}
	if timedOut {
		t.Error("onTimeout must not run when the check succeeds")
	}
}

func TestRetryPolicyTimeout(t *testing.T) {
	p := RetryPolicy{Interval: 2 * time.Millisecond, MaxAttempts: 4}
	attempts := 0
	timedOut := false

	ok := p.Poll(context.Background(), func(attempt int) bool {
		attempts = attempt
		return false
	}, func() { timedOut = true })

	if ok {
		t.Error("expected poll to exhaust")
	}
	if attempts != p.MaxAttempts {
		t.Errorf("expected %d attempts, got %d", p.MaxAttempts, attempts)
	}
	if !timedOut {
		t.Error("onTimeout must run when the cap is exhausted")
	}
}

func TestRetryPolicyContextCancel(t *testing.T) {
	p := RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 1000}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		done <- p.Poll(ctx, func(int) bool { return false }, nil)
	}()

	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Error("cancelled poll must not report success")
		}
	case <-time.After(time.Second):
		t.Fatal("poll did not stop on context cancellation")
	}
}

func TestDefaultPolicies(t *testing.T) {
	profile := ProfilePollPolicy()
	if total := time.Duration(profile.MaxAttempts) * profile.Interval; total != 5*time.Second {
		t.Errorf("profile poll budget = %v, want 5s", total)
	}
	transition := TransitionPollPolicy()
	if total := time.Duration(transition.MaxAttempts) * transition.Interval; total != 10*time.Second {
		t.Errorf("transition poll budget = %v, want 10s", total)
	}
}
