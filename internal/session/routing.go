// Package session provides the routing decision function.
package session

import "github.com/wayfarer-app/wayfarer/internal/models"

// RoutingInput is the complete set of facts the router consumes. Decide is a
// pure function of this struct; identical inputs always yield the same screen.
type RoutingInput struct {
	LockHeld             bool
	IdentityPending      bool
	Authenticated        bool
	ProfileStatus        models.ProfileStatus
	ProfileFetchInFlight bool
	Step                 models.OnboardingStep
	HasLocation          bool
}

// Decide produces exactly one rendering decision, in strict priority order.
// The ordering is load-bearing: each guard eliminates one specific flicker
// that occurs when two asynchronous resolutions race.
func Decide(in RoutingInput) models.ScreenDecision {
	// 1. An in-transition lock forces the loading screen no matter what else
	// is true; several async writes may still be in flight behind it.
	if in.LockHeld {
		return models.ScreenDecision{Screen: models.ScreenLoading, LoadingReason: models.LoadingReasonTransition}
	}

	// 2. Identity resolution itself is still pending.
	if in.IdentityPending {
		return models.ScreenDecision{Screen: models.ScreenLoading, LoadingReason: models.LoadingReasonIdentity}
	}

	// 3. Identity resolved to unauthenticated.
	if !in.Authenticated {
		return models.ScreenDecision{Screen: models.ScreenEntry}
	}

	// 4. The gap between "authenticated" and "profile status known" must not
	// be misread as "new user".
	if in.ProfileStatus == models.ProfileStatusUnknown || in.ProfileFetchInFlight {
		return models.ScreenDecision{Screen: models.ScreenLoading, LoadingReason: models.LoadingReasonProfile}
	}

	// 5. Active onboarding wins over everything below.
	switch in.Step {
	case models.StepNickname:
		return models.ScreenDecision{Screen: models.ScreenOnboardingNickname}
	case models.StepVoice:
		return models.ScreenDecision{Screen: models.ScreenOnboardingVoice}
	case models.StepComplete:
		return models.ScreenDecision{Screen: models.ScreenOnboardingComplete}
	}

	// 6. Unreachable when status and step are computed together; guards
	// against ordering bugs between the two writes.
	if in.ProfileStatus != models.ProfileStatusExists {
		return models.ScreenDecision{Screen: models.ScreenLoading, LoadingReason: models.LoadingReasonFallback}
	}

	// 7. Dashboard, in the map mode determined by location availability.
	mode := models.MapModeGlobal
	if in.HasLocation {
		mode = models.MapModeLocal
	}
	return models.ScreenDecision{Screen: models.ScreenDashboard, MapMode: mode}
}
