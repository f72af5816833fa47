// Package session implements the Wayfarer session orchestrator. It reconciles
// four independently-resolving facts (authentication, profile existence,
// onboarding progress, map-data readiness) into a single flicker-free
// rendering decision, tolerating re-entrant triggers and unordered async
// completions.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
	"github.com/wayfarer-app/wayfarer/internal/store"
)

// Default grace and delay windows.
const (
	// DefaultCompletionGrace bridges the gap between the completion marker
	// being written to the store and the locally-cached profile reload.
	DefaultCompletionGrace = 2 * time.Second
	// DefaultLocationDelay postpones the location-permission prompt so it
	// does not land on top of the first screen.
	DefaultLocationDelay = 1 * time.Second
)

// Config carries the orchestrator's timing policies. The poll caps are
// product decisions and must stay explicit and configurable.
type Config struct {
	ProfilePoll     RetryPolicy
	TransitionPoll  RetryPolicy
	CompletionGrace time.Duration
	LocationDelay   time.Duration
}

// DefaultConfig returns the production timing policies.
func DefaultConfig() Config {
	return Config{
		ProfilePoll:     ProfilePollPolicy(),
		TransitionPoll:  TransitionPollPolicy(),
		CompletionGrace: DefaultCompletionGrace,
		LocationDelay:   DefaultLocationDelay,
	}
}

// Deps holds the external collaborators injected into every session.
type Deps struct {
	Identity IdentityProvider
	Profiles ProfileStore
	Atlas    AtlasSource
	Locator  Locator // optional; nil disables the location sub-flow
	Store    store.Store
}

// Session owns all mutable orchestration state for one user session. State is
// written only through the transitions below; collaborators are read-only
// with respect to it. Timer and poll callbacks arrive on goroutines, so a
// mutex serializes what the source platform serialized on a single thread.
type Session struct {
	ID string

	cfg   Config
	deps  Deps
	timer Timer

	mu              sync.Mutex
	token           string
	identity        *models.Identity // nil while identity resolution is pending
	profile         *models.Profile
	profileStatus   models.ProfileStatus
	profileFetching bool
	location        *models.Coordinates
	events          []models.Event
	nodes           []models.Node
	justCompleted   bool
	graceTimerID    string
	createdAt       time.Time
	cancel          context.CancelFunc // stops background polls; set when the bootstrap starts

	machine     *StepMachine
	coordinator *TransitionCoordinator
	resolver    *ProfileResolver
	lock        SessionLock

	initialized   Latch
	statusLocked  Latch
	expiryHandled Latch
	locationAsked Latch
}

// expiryWatch wraps a ProfileStore so session invalidation from any in-flight
// call is detected in one place.
type expiryWatch struct {
	inner     ProfileStore
	onExpired func()
}

func (w expiryWatch) check(err error) {
	if errors.Is(err, models.ErrSessionInvalid) {
		w.onExpired()
	}
}

func (w expiryWatch) GetProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	p, err := w.inner.GetProfile(ctx, identity)
	w.check(err)
	return p, err
}

func (w expiryWatch) MarkOnboardingComplete(ctx context.Context, identity models.Identity) error {
	err := w.inner.MarkOnboardingComplete(ctx, identity)
	w.check(err)
	return err
}

func (w expiryWatch) ReloadProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	p, err := w.inner.ReloadProfile(ctx, identity)
	w.check(err)
	return p, err
}

// NewSession creates a session in its pre-bootstrap state.
func NewSession(id, token string, cfg Config, deps Deps) *Session {
	s := &Session{
		ID:            id,
		cfg:           cfg,
		deps:          deps,
		timer:         NewSimpleTimer(),
		token:         token,
		profileStatus: models.ProfileStatusUnknown,
		machine:       NewStepMachine(),
		createdAt:     time.Now(),
	}
	watched := expiryWatch{inner: deps.Profiles, onExpired: s.HandleSessionExpired}
	s.resolver = NewProfileResolver(watched, cfg.ProfilePoll)
	s.coordinator = NewTransitionCoordinator(watched, deps.Atlas, cfg.TransitionPoll)
	return s
}

// Start runs the one-time session bootstrap: identity resolution, the profile
// resolver kick-off, and the location sub-flow. The triggering system
// re-evaluates liberally, so all subsequent invocations are no-ops.
func (s *Session) Start(ctx context.Context) {
	if !s.initialized.Trip() {
		slog.Debug("Session Start suppressed, already initialized", "sessionID", s.ID)
		return
	}
	slog.Info("Session bootstrap", "sessionID", s.ID)

	// Background polls and timer callbacks live on this context so teardown
	// can stop them; an orphaned poll concluding after teardown would trip the
	// fresh latches and re-persist the deleted record.
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	identity, err := s.deps.Identity.GetIdentity(ctx, s.token)
	if err != nil {
		if errors.Is(err, models.ErrSessionInvalid) {
			s.HandleSessionExpired()
			return
		}
		slog.Error("Session identity resolution failed", "error", err, "sessionID", s.ID)
		identity = models.Identity{Token: s.token, Authenticated: false}
	}

	s.mu.Lock()
	s.identity = &identity
	authenticated := identity.Authenticated
	s.profileFetching = authenticated
	s.mu.Unlock()
	s.persist()

	if !authenticated {
		slog.Info("Session resolved unauthenticated", "sessionID", s.ID)
		return
	}

	go s.resolver.Resolve(ctx, identity, s.statusLocked.Tripped, s.applyProfileStatus)
	s.maybeRequestLocation(ctx)
}

// applyProfileStatus is the single write path for ProfileStatus. The latch
// makes the determination at-most-once: late poll timers and competing
// triggers are suppressed rather than double-writing.
func (s *Session) applyProfileStatus(status models.ProfileStatus, profile *models.Profile) {
	if !s.statusLocked.Trip() {
		slog.Debug("Session profile status write suppressed, already locked", "sessionID", s.ID, "status", status)
		return
	}

	s.mu.Lock()
	s.profileStatus = status
	s.profile = profile
	s.profileFetching = false
	if s.justCompleted && (status == models.ProfileStatusNotExists || (profile != nil && !profile.OnboardingCompleted)) {
		// Completion grace window: the marker has been written but this read
		// predates the reload. Treat the user as onboarded.
		slog.Info("Session profile read overridden by completion grace", "sessionID", s.ID, "status", status)
	} else {
		s.machine.Begin(EntryStep(status, profile))
	}
	step := s.machine.Step()
	s.mu.Unlock()

	slog.Info("Session profile status resolved", "sessionID", s.ID, "status", status, "entryStep", step)
	s.persist()
	if profile != nil {
		s.cacheProfile(*profile)
	}
}

// CompleteNickname fires the nickname-step completion event.
func (s *Session) CompleteNickname(nickname string) error {
	s.mu.Lock()
	err := s.machine.CompleteNickname(nickname)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.persist()
	return nil
}

// CompleteVoice fires the voice-step completion event, carrying the score
// and reward payload to the complete screen.
func (s *Session) CompleteVoice(result models.VoiceResult) error {
	s.mu.Lock()
	err := s.machine.CompleteVoice(result)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.persist()
	return nil
}

// GoHome runs the quest-completion flow: it closes the onboarding loop,
// holds the in-transition lock across the completion-marker write, profile
// reload and data preparation, and releases it on every path so the UI can
// never become permanently stuck. On readiness timeout it proceeds to the
// dashboard degraded rather than stranding the user on a loader.
func (s *Session) GoHome(ctx context.Context) error {
	if !s.lock.Acquire() {
		slog.Debug("Session GoHome suppressed, transition already in progress", "sessionID", s.ID)
		return models.ErrTransitionActive
	}

	s.mu.Lock()
	if _, err := s.machine.GoHome(); err != nil {
		s.mu.Unlock()
		s.lock.Release()
		return err
	}
	// Set synchronously with the lock, before any async work begins.
	s.justCompleted = true
	identity := *s.identity
	profile := s.profile
	location := s.location
	if location == nil && profile != nil {
		location = profile.Location
	}
	s.mu.Unlock()

	defer func() {
		s.lock.Release()
		s.scheduleGraceClear()
		s.persist()
	}()

	if err := s.coordinator.Prepare(ctx, identity, profile, location, s.reloadProfile); err != nil {
		slog.Error("Session GoHome preparation failed", "error", err, "sessionID", s.ID)
		// The marker may not have been written; put the user back on the
		// complete screen so the action can be retried.
		s.mu.Lock()
		s.machine.Restore(models.StepComplete)
		s.justCompleted = false
		s.mu.Unlock()
		return err
	}

	state, usable := s.coordinator.AwaitUsable(ctx)
	s.mu.Lock()
	if state.Payload != nil {
		s.events = state.Payload.Events
		s.nodes = state.Payload.Nodes
		if s.location == nil && state.Payload.Location != nil {
			s.location = state.Payload.Location
		}
	}
	s.mu.Unlock()

	if !usable {
		slog.Warn("Session GoHome proceeding fail-open without usable map data", "sessionID", s.ID)
	}
	slog.Info("Session GoHome finished", "sessionID", s.ID, "usable", usable)
	return nil
}

// reloadProfile refreshes the locally-cached profile from the external store.
func (s *Session) reloadProfile(ctx context.Context) error {
	s.mu.Lock()
	identity := *s.identity
	s.mu.Unlock()

	watched := expiryWatch{inner: s.deps.Profiles, onExpired: s.HandleSessionExpired}
	profile, err := watched.ReloadProfile(ctx, identity)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.profile = profile
	s.profileStatus = models.ProfileStatusExists
	s.mu.Unlock()
	if profile != nil {
		s.cacheProfile(*profile)
	}
	slog.Debug("Session profile reloaded", "sessionID", s.ID)
	return nil
}

// maybeRequestLocation runs the location-permission sub-flow at most once per
// session, after a short delay. Permission denial is non-fatal: routing
// proceeds in global mode.
func (s *Session) maybeRequestLocation(ctx context.Context) {
	if s.deps.Locator == nil {
		return
	}
	if !s.locationAsked.Trip() {
		slog.Debug("Session location ask suppressed, already asked", "sessionID", s.ID)
		return
	}
	s.timer.ScheduleAfter(s.cfg.LocationDelay, func() {
		coords, err := s.deps.Locator.RequestLocation(ctx)
		if err != nil {
			slog.Info("Session location permission not granted, staying global", "error", err, "sessionID", s.ID)
			return
		}
		s.SetLocation(coords)
	})
}

// SetLocation records a resolved device location for the session.
func (s *Session) SetLocation(coords *models.Coordinates) {
	if coords == nil {
		return
	}
	s.mu.Lock()
	s.location = coords
	if s.profile != nil {
		s.profile.Location = coords
	}
	s.mu.Unlock()
	slog.Info("Session location resolved", "sessionID", s.ID, "lat", coords.Lat, "lng", coords.Lng)
	s.persist()
}

// HandleSessionExpired reacts to identity rejection from any downstream call.
// Parallel in-flight calls all report it; the latch ensures it is handled
// exactly once: cached identity is cleared and routing falls through to the
// unauthenticated path.
func (s *Session) HandleSessionExpired() {
	if !s.expiryHandled.Trip() {
		slog.Debug("Session expiry signal suppressed, already handled", "sessionID", s.ID)
		return
	}
	slog.Warn("Session expired, clearing cached identity", "sessionID", s.ID)
	s.mu.Lock()
	s.identity = &models.Identity{Authenticated: false}
	s.profile = nil
	s.profileFetching = false
	s.mu.Unlock()
	s.persist()
}

// Screen derives the current rendering decision from a consistent snapshot of
// session state. During the completion grace window the user is presented as
// onboarded even though the cached profile may still lag the marker write.
func (s *Session) Screen() models.ScreenDecision {
	s.mu.Lock()
	in := RoutingInput{
		LockHeld:             s.lock.Held(),
		IdentityPending:      s.identity == nil,
		Authenticated:        s.identity != nil && s.identity.Authenticated,
		ProfileStatus:        s.profileStatus,
		ProfileFetchInFlight: s.profileFetching,
		Step:                 s.machine.Step(),
		HasLocation:          s.location != nil || (s.profile != nil && s.profile.Location != nil),
	}
	if s.justCompleted && !in.LockHeld && in.Authenticated {
		in.ProfileStatus = models.ProfileStatusExists
		in.Step = models.StepNone
	}
	s.mu.Unlock()
	return Decide(in)
}

// TransitionState exposes the coordinator state for the API surface.
func (s *Session) TransitionState() models.TransitionState {
	return s.coordinator.State()
}

// MapData returns the prepared event and node collections.
func (s *Session) MapData() ([]models.Event, []models.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, s.nodes
}

// Teardown cancels timers, resets all one-shot guards and deletes persisted
// state. This is the only path that resets SessionFlags.
func (s *Session) Teardown() {
	slog.Info("Session teardown", "sessionID", s.ID)

	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.timer.Stop()

	s.mu.Lock()
	s.identity = nil
	s.profile = nil
	s.profileStatus = models.ProfileStatusUnknown
	s.profileFetching = false
	s.location = nil
	s.events = nil
	s.nodes = nil
	s.justCompleted = false
	s.machine.Reset()
	s.mu.Unlock()

	s.coordinator.Reset()
	s.lock.Release()
	s.initialized.Reset()
	s.statusLocked.Reset()
	s.expiryHandled.Reset()
	s.locationAsked.Reset()

	if s.deps.Store != nil {
		if err := s.deps.Store.DeleteSession(s.ID); err != nil {
			slog.Error("Session teardown delete failed", "error", err, "sessionID", s.ID)
		}
		if err := s.deps.Store.DeleteCachedProfile(s.ID); err != nil {
			slog.Error("Session teardown profile delete failed", "error", err, "sessionID", s.ID)
		}
	}
}

// scheduleGraceClear clears the completion grace flag a fixed window after
// the in-transition lock releases.
func (s *Session) scheduleGraceClear() {
	s.mu.Lock()
	if s.graceTimerID != "" {
		s.timer.Cancel(s.graceTimerID)
	}
	s.mu.Unlock()

	id, err := s.timer.ScheduleAfter(s.cfg.CompletionGrace, func() {
		s.mu.Lock()
		s.justCompleted = false
		s.graceTimerID = ""
		s.mu.Unlock()
		slog.Debug("Session completion grace window closed", "sessionID", s.ID)
	})
	if err != nil {
		slog.Error("Session failed to schedule grace timer", "error", err, "sessionID", s.ID)
		return
	}
	s.mu.Lock()
	s.graceTimerID = id
	s.mu.Unlock()
}

// persist saves a snapshot of the session for restart recovery. Persistence
// failures are logged, never surfaced: routing must not depend on the store.
func (s *Session) persist() {
	if s.deps.Store == nil {
		return
	}
	s.mu.Lock()
	rec := models.SessionRecord{
		SessionID:     s.ID,
		IdentityToken: s.token,
		ProfileStatus: s.profileStatus,
		Step:          s.machine.Step(),
		Flags: models.SessionFlags{
			Initialized:          s.initialized.Tripped(),
			ProfileStatusLocked:  s.statusLocked.Tripped(),
			SessionExpiryHandled: s.expiryHandled.Tripped(),
			LocationAsked:        s.locationAsked.Tripped(),
		},
		Location:  s.location,
		CreatedAt: s.createdAt,
	}
	s.mu.Unlock()

	if err := s.deps.Store.SaveSession(rec); err != nil {
		slog.Error("Session persist failed", "error", err, "sessionID", s.ID)
	}
}

// cacheProfile stores the profile snapshot alongside the session record.
func (s *Session) cacheProfile(profile models.Profile) {
	if s.deps.Store == nil {
		return
	}
	if err := s.deps.Store.SaveCachedProfile(s.ID, profile); err != nil {
		slog.Error("Session profile cache failed", "error", err, "sessionID", s.ID)
	}
}
