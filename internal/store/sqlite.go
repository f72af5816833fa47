// Package store provides storage backends for Wayfarer session state.
//
// This file implements a SQLite-backed store for session records and cached profiles.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/wayfarer-app/wayfarer/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveSession stores or updates a session record.
func (s *SQLiteStore) SaveSession(rec models.SessionRecord) error {
	flagsJSON, locationJSON, err := encodeSessionBlobs(rec)
	if err != nil {
		slog.Error("SQLiteStore SaveSession encode failed", "error", err, "sessionID", rec.SessionID)
		return err
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	_, err = s.db.Exec(`INSERT INTO sessions (session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			identity_token = excluded.identity_token,
			profile_status = excluded.profile_status,
			step = excluded.step,
			flags_json = excluded.flags_json,
			location_json = excluded.location_json,
			updated_at = excluded.updated_at`,
		rec.SessionID, rec.IdentityToken, string(rec.ProfileStatus), string(rec.Step),
		flagsJSON, nilIfEmpty(locationJSON), rec.CreatedAt, now)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save session %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "sessionID", rec.SessionID, "step", rec.Step)
	return nil
}

// GetSession retrieves a session record, returning nil when not found.
func (s *SQLiteStore) GetSession(sessionID string) (*models.SessionRecord, error) {
	row := s.db.QueryRow(`SELECT session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at
		FROM sessions WHERE session_id = ?`, sessionID)
	rec, err := scanSessionRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("SQLiteStore GetSession found", "sessionID", sessionID, "step", rec.Step)
	return rec, nil
}

// ListSessions returns all persisted session records.
func (s *SQLiteStore) ListSessions() ([]models.SessionRecord, error) {
	rows, err := s.db.Query(`SELECT session_id, identity_token, profile_status, step, flags_json, location_json, created_at, updated_at FROM sessions`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(records))
	return records, nil
}

// DeleteSession removes a session record.
func (s *SQLiteStore) DeleteSession(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "sessionID", sessionID)
	return nil
}

// SaveCachedProfile stores or updates the cached profile for a session.
func (s *SQLiteStore) SaveCachedProfile(sessionID string, profile models.Profile) error {
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		slog.Error("SQLiteStore SaveCachedProfile marshal failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to marshal profile: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO cached_profiles (session_id, profile_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET profile_json = excluded.profile_json, updated_at = excluded.updated_at`,
		sessionID, string(profileJSON), time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveCachedProfile failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to save cached profile for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore SaveCachedProfile succeeded", "sessionID", sessionID)
	return nil
}

// GetCachedProfile retrieves the cached profile, returning nil when not found.
func (s *SQLiteStore) GetCachedProfile(sessionID string) (*models.Profile, error) {
	var profileJSON string
	err := s.db.QueryRow(`SELECT profile_json FROM cached_profiles WHERE session_id = ?`, sessionID).Scan(&profileJSON)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetCachedProfile not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCachedProfile failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to query cached profile for %s: %w", sessionID, err)
	}
	var profile models.Profile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		slog.Error("SQLiteStore GetCachedProfile unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to parse cached profile: %w", err)
	}
	slog.Debug("SQLiteStore GetCachedProfile found", "sessionID", sessionID)
	return &profile, nil
}

// DeleteCachedProfile removes the cached profile for a session.
func (s *SQLiteStore) DeleteCachedProfile(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM cached_profiles WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteCachedProfile failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete cached profile for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore DeleteCachedProfile succeeded", "sessionID", sessionID)
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
