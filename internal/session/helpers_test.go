package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
	"github.com/wayfarer-app/wayfarer/internal/store"
)

// fastConfig returns timing policies scaled down so tests finish quickly.
func fastConfig() Config {
	return Config{
		ProfilePoll:     RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 10},
		TransitionPoll:  RetryPolicy{Interval: 5 * time.Millisecond, MaxAttempts: 10},
		CompletionGrace: 50 * time.Millisecond,
		LocationDelay:   time.Millisecond,
	}
}

type fakeIdentity struct {
	authenticated bool
	err           error
}

func (f *fakeIdentity) GetIdentity(ctx context.Context, token string) (models.Identity, error) {
	if f.err != nil {
		return models.Identity{}, f.err
	}
	return models.Identity{Token: token, Authenticated: f.authenticated}, nil
}

// fakeProfiles is a controllable stand-in for the external profile store.
type fakeProfiles struct {
	mu          sync.Mutex
	profile     *models.Profile
	getErr      error
	markErr     error
	getCalls    int
	markCalls   int
	reloadCalls int
	staleReload bool // simulate eventual consistency: reload misses the marker write
}

func (f *fakeProfiles) setProfile(p *models.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

func (f *fakeProfiles) GetProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.profile == nil {
		return nil, nil
	}
	p := *f.profile
	return &p, nil
}

func (f *fakeProfiles) MarkOnboardingComplete(ctx context.Context, identity models.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	if f.profile == nil {
		f.profile = &models.Profile{ID: "created-by-mark"}
	}
	f.profile.OnboardingCompleted = true
	return nil
}

func (f *fakeProfiles) ReloadProfile(ctx context.Context, identity models.Identity) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloadCalls++
	if f.profile == nil {
		return nil, models.ErrProfileUnavailable
	}
	p := *f.profile
	if f.staleReload {
		p.OnboardingCompleted = false
	}
	return &p, nil
}

type fakeAtlas struct {
	events    []models.Event
	nodes     []models.Node
	eventsErr error
	nodesErr  error
	delay     time.Duration
}

func (f *fakeAtlas) FetchEvents(ctx context.Context) ([]models.Event, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.events, f.eventsErr
}

func (f *fakeAtlas) FetchNodes(ctx context.Context) ([]models.Node, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.nodes, f.nodesErr
}

type fakeLocator struct {
	coords *models.Coordinates
	err    error
	calls  atomic.Int32
}

func (f *fakeLocator) RequestLocation(ctx context.Context) (*models.Coordinates, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.coords, nil
}

func mapData() ([]models.Event, []models.Node) {
	events := []models.Event{{ID: "e1", Title: "Night Market", Location: models.Coordinates{Lat: 43.6, Lng: -79.4}}}
	nodes := []models.Node{{ID: "n1", Name: "Union Station", Location: models.Coordinates{Lat: 43.64, Lng: -79.38}}}
	return events, nodes
}

// newTestSession wires a session with fakes and a populated atlas.
func newTestSession(profiles *fakeProfiles, authenticated bool) (*Session, *fakeAtlas) {
	events, nodes := mapData()
	atlas := &fakeAtlas{events: events, nodes: nodes}
	deps := Deps{
		Identity: &fakeIdentity{authenticated: authenticated},
		Profiles: profiles,
		Atlas:    atlas,
		Store:    store.NewInMemoryStore(),
	}
	return NewSession("test-session", "tok-1", fastConfig(), deps), atlas
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
