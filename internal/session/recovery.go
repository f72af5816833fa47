// Package session provides startup recovery so a service restart does not
// strand users mid-onboarding.
package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// RecoverSessions rebuilds in-memory sessions from persisted records. Flags,
// onboarding step, profile status and location are restored so one-shot
// guards stay tripped across restarts; the in-transition lock is deliberately
// not restored, since any in-flight transition died with the old process and
// a held lock would freeze routing forever.
func RecoverSessions(ctx context.Context, m *Manager) error {
	if m.deps.Store == nil {
		slog.Debug("RecoverSessions skipped, no store configured")
		return nil
	}

	records, err := m.deps.Store.ListSessions()
	if err != nil {
		slog.Error("RecoverSessions list failed", "error", err)
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	recovered := 0
	for _, rec := range records {
		sess := NewSession(rec.SessionID, rec.IdentityToken, m.cfg, m.deps)

		if rec.Flags.Initialized {
			sess.initialized.Trip()
		}
		if rec.Flags.ProfileStatusLocked {
			sess.statusLocked.Trip()
		}
		if rec.Flags.SessionExpiryHandled {
			sess.expiryHandled.Trip()
		}
		if rec.Flags.LocationAsked {
			sess.locationAsked.Trip()
		}

		profile, err := m.deps.Store.GetCachedProfile(rec.SessionID)
		if err != nil {
			slog.Error("RecoverSessions profile load failed", "error", err, "sessionID", rec.SessionID)
		}

		// The expiry flag is the persisted record of authentication loss: a
		// session whose expiry was handled must come back signed out, or the
		// restored latch would suppress re-handling forever.
		authenticated := !rec.Flags.SessionExpiryHandled

		sess.mu.Lock()
		sess.identity = &models.Identity{Token: rec.IdentityToken, Authenticated: authenticated}
		sess.profileStatus = rec.ProfileStatus
		sess.profile = profile
		sess.location = rec.Location
		sess.createdAt = rec.CreatedAt
		sess.machine.Restore(rec.Step)
		sess.mu.Unlock()

		// A session persisted before status resolution resumes its poll, on a
		// context the session's own teardown can cancel.
		if !rec.ProfileStatus.Terminal() && rec.Flags.Initialized && authenticated {
			pollCtx, cancel := context.WithCancel(ctx)
			sess.mu.Lock()
			sess.profileFetching = true
			sess.cancel = cancel
			identity := *sess.identity
			sess.mu.Unlock()
			go sess.resolver.Resolve(pollCtx, identity, sess.statusLocked.Tripped, sess.applyProfileStatus)
		}

		m.register(sess)
		recovered++
		slog.Debug("RecoverSessions restored session", "sessionID", rec.SessionID, "step", rec.Step, "status", rec.ProfileStatus)
	}

	slog.Info("RecoverSessions finished", "recovered", recovered)
	return nil
}
