// Package models defines the routing decision output types.
package models

// Screen identifies which screen the client must render.
type Screen string

const (
	ScreenLoading            Screen = "loading"
	ScreenEntry              Screen = "entry"
	ScreenOnboardingNickname Screen = "onboarding_nickname"
	ScreenOnboardingVoice    Screen = "onboarding_voice"
	ScreenOnboardingComplete Screen = "onboarding_complete"
	ScreenDashboard          Screen = "dashboard"
)

// Loading reasons shown on the loading screen.
const (
	LoadingReasonTransition = "Preparing your world"
	LoadingReasonIdentity   = "Loading"
	LoadingReasonProfile    = "Loading your profile"
	LoadingReasonFallback   = "Loading"
)

// ScreenDecision is the single rendering decision produced by the router.
type ScreenDecision struct {
	Screen        Screen  `json:"screen"`
	LoadingReason string  `json:"loading_reason,omitempty"`
	MapMode       MapMode `json:"map_mode,omitempty"`
}
