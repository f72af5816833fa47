// Package session provides the bounded-polling primitive shared by the
// profile resolver and the transition coordinator.
package session

import (
	"context"
	"log/slog"
	"time"
)

// Default polling policies. The caps are deliberate product decisions
// (assume non-existence / proceed degraded), not incidental network hygiene.
const (
	// DefaultProfilePollInterval is the delay between profile existence checks.
	DefaultProfilePollInterval = 500 * time.Millisecond
	// DefaultProfilePollAttempts caps the profile poll at 5s total.
	DefaultProfilePollAttempts = 10
	// DefaultTransitionPollInterval is the delay between transition readiness checks.
	DefaultTransitionPollInterval = 100 * time.Millisecond
	// DefaultTransitionPollAttempts caps the readiness poll at 10s total.
	DefaultTransitionPollAttempts = 100
)

// RetryPolicy is an explicit bounded-polling policy: check at a fixed interval
// up to a maximum number of attempts, then give up.
type RetryPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// ProfilePollPolicy returns the default policy for profile resolution.
func ProfilePollPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultProfilePollInterval, MaxAttempts: DefaultProfilePollAttempts}
}

// TransitionPollPolicy returns the default policy for transition readiness.
func TransitionPollPolicy() RetryPolicy {
	return RetryPolicy{Interval: DefaultTransitionPollInterval, MaxAttempts: DefaultTransitionPollAttempts}
}

// Poll invokes check once per interval until it returns true, the attempt cap
// is reached, or ctx is cancelled. When the cap is exhausted without check
// succeeding, onTimeout runs (if non-nil). Poll blocks; callers that need it
// asynchronous run it in a goroutine. It returns true if check succeeded.
func (p RetryPolicy) Poll(ctx context.Context, check func(attempt int) bool, onTimeout func()) bool {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			slog.Debug("RetryPolicy poll cancelled", "attempt", attempt, "error", ctx.Err())
			return false
		case <-ticker.C:
		}
		if check(attempt) {
			slog.Debug("RetryPolicy poll resolved", "attempt", attempt)
			return true
		}
	}

	slog.Debug("RetryPolicy poll exhausted", "maxAttempts", p.MaxAttempts, "interval", p.Interval)
	if onTimeout != nil {
		onTimeout()
	}
	return false
}
