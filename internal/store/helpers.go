package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// encodeSessionBlobs serializes the JSON-valued columns of a session record.
func encodeSessionBlobs(rec models.SessionRecord) (flagsJSON, locationJSON string, err error) {
	flags, err := json.Marshal(rec.Flags)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session flags: %w", err)
	}
	if rec.Location == nil {
		return string(flags), "", nil
	}
	loc, err := json.Marshal(rec.Location)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal session location: %w", err)
	}
	return string(flags), string(loc), nil
}

// decodeSessionBlobs populates the JSON-valued fields of a session record.
func decodeSessionBlobs(rec *models.SessionRecord, flagsJSON string, locationJSON sql.NullString) error {
	if flagsJSON != "" {
		if err := json.Unmarshal([]byte(flagsJSON), &rec.Flags); err != nil {
			return fmt.Errorf("failed to parse session flags: %w", err)
		}
	}
	if locationJSON.Valid && locationJSON.String != "" {
		var loc models.Coordinates
		if err := json.Unmarshal([]byte(locationJSON.String), &loc); err != nil {
			return fmt.Errorf("failed to parse session location: %w", err)
		}
		rec.Location = &loc
	}
	return nil
}

// scanSession scans a SessionRecord from sql.Rows.
func scanSession(rows *sql.Rows) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var status, step, flagsJSON string
	var locationJSON sql.NullString
	err := rows.Scan(&rec.SessionID, &rec.IdentityToken, &status, &step, &flagsJSON, &locationJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan session failed: %w", err)
	}
	rec.ProfileStatus = models.ProfileStatus(status)
	rec.Step = models.OnboardingStep(step)
	if err := decodeSessionBlobs(&rec, flagsJSON, locationJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}

// scanSessionRow scans a SessionRecord from a single sql.Row.
func scanSessionRow(row *sql.Row) (*models.SessionRecord, error) {
	var rec models.SessionRecord
	var status, step, flagsJSON string
	var locationJSON sql.NullString
	err := row.Scan(&rec.SessionID, &rec.IdentityToken, &status, &step, &flagsJSON, &locationJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.ProfileStatus = models.ProfileStatus(status)
	rec.Step = models.OnboardingStep(step)
	if err := decodeSessionBlobs(&rec, flagsJSON, locationJSON); err != nil {
		return nil, err
	}
	return &rec, nil
}
