// Package session provides the session registry.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/wayfarer-app/wayfarer/internal/models"
)

// Manager owns the live sessions keyed by ID.
type Manager struct {
	mu       sync.RWMutex
	cfg      Config
	deps     Deps
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager(cfg Config, deps Deps) *Manager {
	slog.Debug("Creating session Manager")
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create mints a new session for the given identity token and starts its
// bootstrap asynchronously; callers poll Screen for the loading progression.
func (m *Manager) Create(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, models.ErrEmptyToken
	}
	id := uuid.NewString()
	sess := NewSession(id, token, m.cfg, m.deps)

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	slog.Info("Manager created session", "sessionID", id)
	go sess.Start(context.WithoutCancel(ctx))
	return sess, nil
}

// Get returns the session with the given ID, if registered.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Terminate tears down and unregisters a session (logout).
func (m *Manager) Terminate(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return models.ErrSessionNotFound
	}
	sess.Teardown()
	slog.Info("Manager terminated session", "sessionID", id)
	return nil
}

// register adds a rebuilt session during startup recovery.
func (m *Manager) register(sess *Session) {
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
}
