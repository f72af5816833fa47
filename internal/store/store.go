// Package store provides storage backends for Wayfarer session state.
//
// It includes an in-memory store for tests and DSN-less runs, plus persistent
// SQLite and PostgreSQL backends selected by DSN detection.
package store

import (
	"strings"
	"sync"
	"time"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// Store defines persistence for session snapshots and cached profiles.
type Store interface {
	SaveSession(rec models.SessionRecord) error
	GetSession(sessionID string) (*models.SessionRecord, error)
	ListSessions() ([]models.SessionRecord, error)
	DeleteSession(sessionID string) error

	SaveCachedProfile(sessionID string, profile models.Profile) error
	GetCachedProfile(sessionID string) (*models.Profile, error)
	DeleteCachedProfile(sessionID string) error

	Close() error
}

// Opts holds configuration applied by Option functions.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets a SQLite file path as the store DSN.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL connection string as the store DSN.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". PostgreSQL DSNs
// use URL or key=value forms; anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// InMemoryStore is a mutex-guarded map-backed store used in tests and when no
// DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionRecord
	profiles map[string]models.Profile
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]models.SessionRecord),
		profiles: make(map[string]models.Profile),
	}
}

// SaveSession stores or replaces a session record.
func (s *InMemoryStore) SaveSession(rec models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.UpdatedAt = time.Now()
	s.sessions[rec.SessionID] = rec
	return nil
}

// GetSession retrieves a session record, returning nil when absent.
func (s *InMemoryStore) GetSession(sessionID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// ListSessions returns all persisted session records.
func (s *InMemoryStore) ListSessions() ([]models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		out = append(out, rec)
	}
	return out, nil
}

// DeleteSession removes a session record.
func (s *InMemoryStore) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// SaveCachedProfile stores the profile snapshot for a session.
func (s *InMemoryStore) SaveCachedProfile(sessionID string, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[sessionID] = profile
	return nil
}

// GetCachedProfile retrieves the cached profile, returning nil when absent.
func (s *InMemoryStore) GetCachedProfile(sessionID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[sessionID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// DeleteCachedProfile removes the cached profile for a session.
func (s *InMemoryStore) DeleteCachedProfile(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, sessionID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
