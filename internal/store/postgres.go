// Package store provides storage backends for Wayfarer session state.
//
// This file implements a PostgreSQL-backed store for session records and cached profiles.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/wayfarer-app/wayfarer/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// SaveSession stores or updates a session record.
func (s *PostgresStore) SaveSession(rec models.SessionRecord) error {
	flagsJSON, locationJSON, err := encodeSessionBlobs(rec)
	if err != nil {
		slog.Error("PostgresStore SaveSession encode failed", "error", err, "sessionID", rec.SessionID)
		return err
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err = s.db.Exec(`INSERT INTO sessions (session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			identity_token = EXCLUDED.identity_token,
			profile_status = EXCLUDED.profile_status,
			step = EXCLUDED.step,
			flags_json = EXCLUDED.flags_json,
			location_json = EXCLUDED.location_json,
			updated_at = EXCLUDED.updated_at`,
		rec.SessionID, rec.IdentityToken, string(rec.ProfileStatus), string(rec.Step),
		flagsJSON, nilIfEmpty(locationJSON), rec.CreatedAt, now)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save session %s: %w", rec.SessionID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "sessionID", rec.SessionID, "step", rec.Step)
	return nil
}

// GetSession retrieves a session record, returning nil when not found.
func (s *PostgresStore) GetSession(sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRow(`SELECT session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at
		FROM sessions WHERE session_id = $1`, sessionID)
	rec, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("PostgresStore GetSession found", "sessionID", sessionID, "step", rec.Step)
	return rec, nil
}

// ListSessions returns all persisted session records.
func (s *PostgresStore) ListSessions() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at FROM sessions`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "count", len(records))
	return records, nil
}

// DeleteSession removes a session record.
func (s *PostgresStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// SaveCachedProfile stores or updates the cached profile for a session.
func (s *PostgresStore) SaveCachedProfile(sessionID string, profile models.Profile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		slog.Error("PostgresStore SaveCachedProfile marshal failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO cached_profiles (session_id, profile_json, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET profile_json = EXCLUDED.profile_json, updated_at = EXCLUDED.updated_at`,
		sessionID, string(profileJSON), time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveCachedProfile failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to save cached profile for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore SaveCachedProfile succeeded", "sessionID", sessionID)
	return nil
}

// GetCachedProfile retrieves the cached profile, returning nil when not found.
func (s *PostgresStore) GetCachedProfile(sessionID string) (*models.Profile, error) {
	var profileJSON string
	err := s.db.QueryRow(`SELECT profile_json FROM cached_profiles WHERE session_id = $1`, sessionID).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetCachedProfile not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCachedProfile failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query cached profile for %s: %w", sessionID, err)
	}
	var profile models.Profile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		slog.Error("PostgresStore GetCachedProfile unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to parse cached profile: %w", err)
	}
	slog.Debug("PostgresStore GetCachedProfile found", "sessionID", sessionID)
	return &profile, nil
}

// DeleteCachedProfile removes the cached profile for a session.
func (s *PostgresStore) DeleteCachedProfile(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM cached_profiles WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteCachedProfile failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete cached profile for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore DeleteCachedProfile succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
