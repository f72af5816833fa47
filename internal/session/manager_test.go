package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
	"github.com/wayfarer-app/wayfarer/internal/store"
)

func newTestManager(profiles *fakeProfiles, st store.Store) *Manager {
	events, nodes := mapData()
	deps := Deps{
		Identity: &fakeIdentity{authenticated: true},
		Profiles: profiles,
		Atlas:    &fakeAtlas{events: events, nodes: nodes},
		Store:    st,
	}
	return NewManager(fastConfig(), deps)
}

func TestManagerCreateAndGet(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", Name: "Ana", OnboardingCompleted: true}}
	m := newTestManager(profiles, store.NewInMemoryStore())

	sess, err := m.Create(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" {
		t.Error("session must be assigned an ID")
	}
	if m.Count() != 1 {
		t.Errorf("Count = %d, want 1", m.Count())
	}

	got, ok := m.Get(sess.ID)
	if !ok || got != sess {
		t.Error("Get did not return the registered session")
	}
	if _, ok := m.Get("missing"); ok {
		t.Error("Get must miss on unknown IDs")
	}

	// Create starts the bootstrap asynchronously.
	if !waitFor(time.Second, screenIs(sess, models.ScreenDashboard)) {
		t.Errorf("created session never bootstrapped, got %+v", sess.Screen())
	}
}

func TestManagerCreateRejectsEmptyToken(t *testing.T) {
	m := newTestManager(&fakeProfiles{}, nil)
	if _, err := m.Create(context.Background(), ""); !errors.Is(err, models.ErrEmptyToken) {
		t.Errorf("expected ErrEmptyToken, got %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("rejected create must not register a session, count = %d", m.Count())
	}
}

func TestManagerTerminate(t *testing.T) {
	profiles := &fakeProfiles{profile: &models.Profile{ID: "u1", Name: "Ana", OnboardingCompleted: true}}
	st := store.NewInMemoryStore()
	m := newTestManager(profiles, st)

	sess, err := m.Create(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !waitFor(time.Second, screenIs(sess, models.ScreenDashboard)) {
		t.Fatal("session never bootstrapped")
	}

	if err := m.Terminate(sess.ID); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("terminated session still registered, count = %d", m.Count())
	}
	if rec, _ := st.GetSession(sess.ID); rec != nil {
		t.Error("terminate must delete the persisted record")
	}

	if err := m.Terminate(sess.ID); !errors.Is(err, models.ErrSessionNotFound) {
		t.Errorf("second terminate = %v, want ErrSessionNotFound", err)
	}
}
