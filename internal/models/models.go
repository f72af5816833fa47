// Package models defines the core data structures for Wayfarer.
//
// It includes identity, profile, and map-data types shared across modules.
package models

import (
	"errors"
	"time"
)

// ProfileStatus captures what the orchestrator knows about profile existence.
type ProfileStatus string

const (
	// ProfileStatusUnknown is the initial value; it must never be treated as a routing signal.
	ProfileStatusUnknown ProfileStatus = "unknown"
	// ProfileStatusExists means a profile record has been observed for the identity.
	ProfileStatusExists ProfileStatus = "exists"
	// ProfileStatusNotExists means the bounded wait elapsed with no profile observed.
	ProfileStatusNotExists ProfileStatus = "not_exists"
)

// Terminal reports whether the status has resolved to a final value.
func (s ProfileStatus) Terminal() bool {
	return s == ProfileStatusExists || s == ProfileStatusNotExists
}

// MapMode selects the dashboard map view.
type MapMode string

const (
	// MapModeLocal centers the map on the user's resolved location.
	MapModeLocal MapMode = "local"
	// MapModeGlobal shows the world view when no location is resolved.
	MapModeGlobal MapMode = "global"
)

// Error variables for better error handling and testability
var (
	ErrEmptyToken         = errors.New("identity token cannot be empty")
	ErrNotAuthenticated   = errors.New("identity is not authenticated")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidTransition  = errors.New("invalid onboarding transition")
	ErrTransitionActive   = errors.New("a transition is already in progress")
	ErrLocationDenied     = errors.New("location permission denied")
	ErrSessionInvalid     = errors.New("session invalidated by identity store")
	ErrProfileUnavailable = errors.New("profile record unavailable")
)

// Identity is the opaque proof that a user is authenticated. It is resolved
// once per session by the external identity store and is immutable afterward.
type Identity struct {
	Token         string `json:"token"`
	Authenticated bool   `json:"authenticated"`
}

// Coordinates is a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Profile is the persisted record describing a user, held by the external
// identity/profile store and cached locally per session.
type Profile struct {
	ID                  string       `json:"id"`
	Name                string       `json:"name,omitempty"`
	Email               string       `json:"email,omitempty"`
	AvatarURL           string       `json:"avatar_url,omitempty"`
	OnboardingCompleted bool         `json:"onboarding_completed"`
	Location            *Coordinates `json:"location,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

// HasBaselineIdentity reports whether the profile carries identity fields from
// a sibling product (name/email/avatar). A cross-product user has these even
// though this product's onboarding is incomplete.
func (p *Profile) HasBaselineIdentity() bool {
	if p == nil {
		return false
	}
	return p.Name != "" || p.Email != "" || p.AvatarURL != ""
}

// Event is a geocoded happening shown on the dashboard map.
type Event struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Location Coordinates `json:"location"`
	StartsAt time.Time   `json:"starts_at"`
	EndsAt   time.Time   `json:"ends_at,omitempty"`
}

// Node is a partner location rendered on the dashboard map.
type Node struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location Coordinates `json:"location"`
	Kind     string      `json:"kind,omitempty"`
}
