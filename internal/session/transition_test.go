package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

func testPollPolicy() RetryPolicy {
	return RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 10}
}

func TestTransitionPrepareMarksCompletionBeforeReady(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", Name: "Ana", OnboardingCompleted: false}}
	events, nodes := mapData()
	c := NewTransitionCoordinator(profiles, &fakeAtlas{events: events, nodes: nodes}, testPollPolicy())

	reloaded := false
	identity := models.Identity{Token: "t", Authenticated: true}
	err := c.Prepare(context.Background(), identity, profiles.profile, nil, func(ctx context.Context) error {
		// The marker write must have landed before the reload runs.
		if profiles.markCalls != 1 {
			t.Errorf("reload ran before marker write (markCalls=%d)", profiles.markCalls)
		}
		reloaded = true
		return nil
	})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if !reloaded {
		t.Error("profile reloader was not invoked")
	}

	state := c.State()
	if state.Phase != models.TransitionReady {
		t.Errorf("expected ready, got %s", state.Phase)
	}
	if !state.Usable() {
		t.Errorf("expected usable payload, got %+v", state)
	}
	if state.Progress != 1.0 {
		t.Errorf("expected full progress, got %v", state.Progress)
	}
}

func TestTransitionPrepareSkipsMarkerWhenAlreadyComplete(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", OnboardingCompleted: true}}
	events, nodes := mapData()
	c := NewTransitionCoordinator(profiles, &fakeAtlas{events: events, nodes: nodes}, testPollPolicy())

	err := c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, func(ctx context.Context) error {
		t.Error("reload must not run for an already-complete profile")
		return nil
	})
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if profiles.markCalls != 0 {
		t.Errorf("marker rewritten unnecessarily: %d calls", profiles.markCalls)
	}
}

func TestTransitionPrepareMarkerFailurePropagates(t *testing.T) {
	profiles := &fakeProfiles{
		profile: &models.Profile{ID: "u1"},
		markErr: errors.New("store rejected write"),
	}
	events, nodes := mapData()
	c := NewTransitionCoordinator(profiles, &fakeAtlas{events: events, nodes: nodes}, testPollPolicy())

	err := c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, func(ctx context.Context) error { return nil })
	if err == nil {
		t.Fatal("expected marker write failure to propagate")
	}
	if state := c.State(); state.Phase != models.TransitionFailed {
		t.Errorf("expected failed phase, got %s", state.Phase)
	}
}

func TestTransitionFetchErrorsDegradeToEmpty(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", OnboardingCompleted: true}}
	atlas := &fakeAtlas{eventsErr: errors.New("events down"), nodesErr: errors.New("nodes down")}
	c := NewTransitionCoordinator(profiles, atlas, testPollPolicy())

	err := c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, nil)
	if err != nil {
		t.Fatalf("fetch errors must not fail Prepare: %v", err)
	}

	state := c.State()
	if state.Phase != models.TransitionReady {
		t.Errorf("expected ready despite degraded payload, got %s", state.Phase)
	}
	if state.Usable() {
		t.Error("empty collections must not count as usable")
	}
}

func TestAwaitUsableFailOpen(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", OnboardingCompleted: true}}
	// Nodes never arrive, so the payload never becomes usable.
	c := NewTransitionCoordinator(profiles, &fakeAtlas{}, testPollPolicy())

	if err := c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, nil); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	start := time.Now()
	_, usable := c.AwaitUsable(context.Background())
	if usable {
		t.Error("expected readiness poll to time out")
	}
	budget := time.Duration(testPollPolicy().MaxAttempts) * testPollPolicy().Interval
	if elapsed := time.Since(start); elapsed < budget-testPollPolicy().Interval {
		t.Errorf("poll gave up before its budget: %v < %v", elapsed, budget)
	}
}

func TestTransitionStateSnapshotIsolated(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", OnboardingCompleted: true}}
	events, nodes := mapData()
	atlas := &fakeAtlas{events: events, nodes: nodes, delay: 10 * time.Millisecond}
	c := NewTransitionCoordinator(profiles, atlas, testPollPolicy())

	done := make(chan error, 1)
	go func() {
		done <- c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, nil)
	}()

	// Readers poll the state while the fetch goroutines are still writing the
	// payload, the same window a client polling the loader hits.
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if state := c.State(); state.Payload != nil {
					_ = len(state.Payload.Events) + len(state.Payload.Nodes)
				}
			}
		}()
	}

	if err := <-done; err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	close(stop)
	wg.Wait()

	// A snapshot is detached: mutating it must not reach the coordinator.
	snap := c.State()
	snap.Payload.Events = nil
	snap.Payload.Nodes = nil
	if !c.State().Usable() {
		t.Error("snapshot mutation leaked into coordinator state")
	}
}

func TestTransitionPrepareRejectsConcurrentRun(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", OnboardingCompleted: true}}
	events, nodes := mapData()
	atlas := &fakeAtlas{events: events, nodes: nodes, delay: 30 * time.Millisecond}
	c := NewTransitionCoordinator(profiles, atlas, testPollPolicy())

	done := make(chan error, 1)
	go func() {
		done <- c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, nil)
	}()

	if !waitFor(time.Second, func() bool { return c.State().Phase == models.TransitionPreparing }) {
		t.Fatal("first Prepare never started")
	}
	if err := c.Prepare(context.Background(), models.Identity{Authenticated: true}, profiles.profile, nil, nil); !errors.Is(err, models.ErrTransitionActive) {
		t.Errorf("expected ErrTransitionActive for re-entrant Prepare, got %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("first Prepare failed: %v", err)
	}
}
