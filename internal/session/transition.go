// Package session provides the dashboard transition coordinator.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// TransitionCoordinator prepares the data a user needs before the dashboard
// can render: the onboarding-completion marker persisted and reloaded, plus
// the event and node collections and resolved location. Its payload is the
// single source of truth for map-data readiness; the session's own
// collections are written from it once it is usable.
type TransitionCoordinator struct {
	mu         sync.Mutex
	state      models.TransitionState
	profiles   ProfileStore
	atlas      AtlasSource
	pollPolicy RetryPolicy
}

// NewTransitionCoordinator creates an idle coordinator.
func NewTransitionCoordinator(profiles ProfileStore, atlas AtlasSource, pollPolicy RetryPolicy) *TransitionCoordinator {
	return &TransitionCoordinator{
		profiles:   profiles,
		atlas:      atlas,
		pollPolicy: pollPolicy,
		state:      models.TransitionState{Phase: models.TransitionIdle},
	}
}

// State returns a snapshot of the current transition state. The payload is
// copied so callers never share the struct the fetch goroutines are writing.
func (c *TransitionCoordinator) State() models.TransitionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if c.state.Payload != nil {
		payload := *c.state.Payload
		state.Payload = &payload
	}
	return state
}

// Reset returns the coordinator to idle. Only session teardown calls this.
func (c *TransitionCoordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = models.TransitionState{Phase: models.TransitionIdle}
}

// Prepare drives the state from idle through preparing to ready (or failed).
//
// The completion-marker write and the profile reload must complete before
// readiness is declared, because downstream routing consults the marker. An
// error there marks the transition failed and propagates to the caller, which
// must still clear the in-transition lock in a deferred release. Map-data
// fetch errors, by contrast, degrade to empty collections and never block.
func (c *TransitionCoordinator) Prepare(ctx context.Context, identity models.Identity, profile *models.Profile, location *models.Coordinates, reloadProfile func(ctx context.Context) error) error {
	c.mu.Lock()
	if c.state.Phase == models.TransitionPreparing {
		c.mu.Unlock()
		slog.Debug("TransitionCoordinator Prepare suppressed, already preparing")
		return models.ErrTransitionActive
	}
	c.state = models.TransitionState{
		Phase:   models.TransitionPreparing,
		Payload: &models.TransitionPayload{Location: location},
	}
	c.mu.Unlock()

	slog.Info("TransitionCoordinator preparing dashboard data")

	if profile == nil || !profile.OnboardingCompleted {
		if err := c.profiles.MarkOnboardingComplete(ctx, identity); err != nil {
			slog.Error("TransitionCoordinator completion-marker write failed", "error", err)
			c.fail()
			return fmt.Errorf("failed to persist onboarding completion: %w", err)
		}
		if err := reloadProfile(ctx); err != nil {
			slog.Error("TransitionCoordinator profile reload failed", "error", err)
			c.fail()
			return fmt.Errorf("failed to reload profile: %w", err)
		}
	}
	c.advance(0.25)

	// Events and nodes load independently; completion order is not
	// guaranteed. Fetch errors degrade the collection to empty.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		events, err := c.atlas.FetchEvents(ctx)
		if err != nil {
			slog.Error("TransitionCoordinator event fetch failed, degrading to empty", "error", err)
			events = nil
		}
		c.mu.Lock()
		c.state.Payload.Events = events
		c.mu.Unlock()
		c.advance(0.3)
	}()
	go func() {
		defer wg.Done()
		nodes, err := c.atlas.FetchNodes(ctx)
		if err != nil {
			slog.Error("TransitionCoordinator node fetch failed, degrading to empty", "error", err)
			nodes = nil
		}
		c.mu.Lock()
		c.state.Payload.Nodes = nodes
		c.mu.Unlock()
		c.advance(0.3)
	}()
	wg.Wait()

	c.mu.Lock()
	c.state.Phase = models.TransitionReady
	c.state.Progress = 1.0
	events := len(c.state.Payload.Events)
	nodes := len(c.state.Payload.Nodes)
	c.mu.Unlock()

	slog.Info("TransitionCoordinator ready", "events", events, "nodes", nodes)
	return nil
}

// AwaitUsable polls until the payload can actually back a dashboard render.
// On timeout the caller proceeds to the dashboard anyway: losing this
// richness is preferable to stranding the user on a loader.
func (c *TransitionCoordinator) AwaitUsable(ctx context.Context) (models.TransitionState, bool) {
	usable := c.pollPolicy.Poll(ctx, func(attempt int) bool {
		return c.State().Usable()
	}, func() {
		slog.Warn("TransitionCoordinator readiness poll timed out, proceeding degraded",
			"maxAttempts", c.pollPolicy.MaxAttempts, "interval", c.pollPolicy.Interval)
	})
	return c.State(), usable
}

func (c *TransitionCoordinator) fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Phase = models.TransitionFailed
}

func (c *TransitionCoordinator) advance(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Progress += delta
	if c.state.Progress > 1.0 {
		c.state.Progress = 1.0
	}
}
