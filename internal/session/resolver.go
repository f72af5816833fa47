// Package session provides the bounded profile-existence resolver.
package session

import (
	"context"
	"log/slog"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// ProfileResolver determines whether a profile record exists for an identity,
// with a bounded polling fallback while the external store is still
// propagating. Network errors during a check count as "not yet observed";
// only the attempt cap resolves to not-exists.
type ProfileResolver struct {
	profiles ProfileStore
	policy   RetryPolicy
}

// NewProfileResolver creates a resolver with the given polling policy.
func NewProfileResolver(profiles ProfileStore, policy RetryPolicy) *ProfileResolver {
	return &ProfileResolver{profiles: profiles, policy: policy}
}

// Resolve drives ProfileStatus from unknown to a terminal value.
//
// resolved is re-checked on every tick so a competing path that has already
// determined the status suppresses this poll loop (late timers must not
// produce a redundant status write). apply receives the terminal status and
// the observed profile, if any; it is called at most once per Resolve.
// Resolve blocks; the orchestrator runs it in a goroutine.
func (r *ProfileResolver) Resolve(ctx context.Context, identity models.Identity, resolved func() bool, apply func(models.ProfileStatus, *models.Profile)) {
	slog.Debug("ProfileResolver Resolve invoked", "authenticated", identity.Authenticated)

	// Synchronous fast path: the record may already be visible.
	profile, err := r.profiles.GetProfile(ctx, identity)
	if err == nil && profile != nil {
		slog.Debug("ProfileResolver fast path hit")
		apply(models.ProfileStatusExists, profile)
		return
	}
	if err != nil {
		slog.Debug("ProfileResolver initial check failed, treating as not yet observed", "error", err)
	}

	r.policy.Poll(ctx, func(attempt int) bool {
		// A competing trigger may have resolved status already; abort this
		// timer rather than double-writing.
		if resolved() {
			slog.Debug("ProfileResolver poll suppressed, already resolved", "attempt", attempt)
			return true
		}
		profile, err := r.profiles.GetProfile(ctx, identity)
		if err != nil {
			slog.Debug("ProfileResolver poll check failed, treating as not yet observed", "error", err, "attempt", attempt)
			return false
		}
		if profile == nil {
			return false
		}
		slog.Info("ProfileResolver observed profile", "attempt", attempt)
		apply(models.ProfileStatusExists, profile)
		return true
	}, func() {
		if resolved() {
			slog.Debug("ProfileResolver timeout suppressed, already resolved")
			return
		}
		slog.Info("ProfileResolver cap reached with no profile, resolving not_exists",
			"maxAttempts", r.policy.MaxAttempts, "interval", r.policy.Interval)
		apply(models.ProfileStatusNotExists, nil)
	})
}
