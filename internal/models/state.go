// Package models defines session state structures for Wayfarer orchestration.
package models

import "time"

// OnboardingStep identifies which onboarding screen, if any, is active.
type OnboardingStep string

const (
	// StepNone means no onboarding is active for the session.
	StepNone OnboardingStep = "none"
	// StepNickname is the first screen for brand-new users.
	StepNickname OnboardingStep = "nickname"
	// StepVoice is the product-activation screen; cross-product users enter here directly.
	StepVoice OnboardingStep = "voice"
	// StepComplete is the terminal celebration screen before the go-home action.
	StepComplete OnboardingStep = "complete"
)

// VoiceResult is the payload carried from the voice step into the complete screen.
type VoiceResult struct {
	Score  int    `json:"score"`
	Reward string `json:"reward,omitempty"`
}

// TransitionPhase tracks dashboard preparation after onboarding completes.
type TransitionPhase string

const (
	TransitionIdle      TransitionPhase = "idle"
	TransitionPreparing TransitionPhase = "preparing"
	TransitionReady     TransitionPhase = "ready"
	TransitionFailed    TransitionPhase = "failed"
)

// TransitionPayload holds the data the dashboard needs before first render.
type TransitionPayload struct {
	Events   []Event      `json:"events"`
	Nodes    []Node       `json:"nodes"`
	Location *Coordinates `json:"location,omitempty"`
}

// TransitionState is the observable progress of dashboard preparation.
// Phase alone is an insufficient readiness signal; consumers must also check
// that the payload collections are non-empty.
type TransitionState struct {
	Phase    TransitionPhase    `json:"phase"`
	Progress float64            `json:"progress"`
	Payload  *TransitionPayload `json:"payload,omitempty"`
}

// Usable reports whether the transition payload can actually back a dashboard
// render.
func (t TransitionState) Usable() bool {
	return t.Phase == TransitionReady && t.Payload != nil &&
		len(t.Payload.Events) > 0 && len(t.Payload.Nodes) > 0
}

// SessionFlags are one-shot booleans providing at-most-once execution
// guarantees across re-entrant triggers. They carry no business meaning and
// are reset only on full session teardown.
type SessionFlags struct {
	Initialized          bool `json:"initialized"`
	ProfileStatusLocked  bool `json:"profile_status_locked"`
	SessionExpiryHandled bool `json:"session_expiry_handled"`
	LocationAsked        bool `json:"location_asked"`
}

// SessionRecord is the persisted snapshot of a session, enough to rebuild an
// in-flight onboarding after a service restart.
type SessionRecord struct {
	SessionID     string         `json:"session_id"`
	IdentityToken string         `json:"identity_token"`
	ProfileStatus ProfileStatus  `json:"profile_status"`
	Step          OnboardingStep `json:"step"`
	Flags         SessionFlags   `json:"flags"`
	Location      *Coordinates   `json:"location,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
