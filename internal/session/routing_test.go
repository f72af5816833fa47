package session

import (
	"testing"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

func TestDecidePriorityOrder(t *testing.T) {
	cases := []struct {
		name       string
		in         RoutingInput
		wantScreen models.Screen
		wantReason string
		wantMode   models.MapMode
	}{
		{
			name:       "lock held beats everything",
			in:         RoutingInput{LockHeld: true, Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepVoice},
			wantScreen: models.ScreenLoading,
			wantReason: models.LoadingReasonTransition,
		},
		{
			name:       "identity pending",
			in:         RoutingInput{IdentityPending: true},
			wantScreen: models.ScreenLoading,
			wantReason: models.LoadingReasonIdentity,
		},
		{
			name:       "unauthenticated",
			in:         RoutingInput{Authenticated: false, ProfileStatus: models.ProfileStatusExists},
			wantScreen: models.ScreenEntry,
		},
		{
			name:       "profile status unknown is never a routing signal",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusUnknown},
			wantScreen: models.ScreenLoading,
			wantReason: models.LoadingReasonProfile,
		},
		{
			name:       "profile fetch in flight",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, ProfileFetchInFlight: true},
			wantScreen: models.ScreenLoading,
			wantReason: models.LoadingReasonProfile,
		},
		{
			name:       "nickname step",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusNotExists, Step: models.StepNickname},
			wantScreen: models.ScreenOnboardingNickname,
		},
		{
			name:       "voice step",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepVoice},
			wantScreen: models.ScreenOnboardingVoice,
		},
		{
			name:       "complete step",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepComplete},
			wantScreen: models.ScreenOnboardingComplete,
		},
		{
			name:       "defensive fallback when status not exists and no step",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusNotExists, Step: models.StepNone},
			wantScreen: models.ScreenLoading,
			wantReason: models.LoadingReasonFallback,
		},
		{
			name:       "dashboard local with location",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepNone, HasLocation: true},
			wantScreen: models.ScreenDashboard,
			wantMode:   models.MapModeLocal,
		},
		{
			name:       "dashboard global without location",
			in:         RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepNone},
			wantScreen: models.ScreenDashboard,
			wantMode:   models.MapModeGlobal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.in)
			if got.Screen != tc.wantScreen {
				t.Errorf("screen = %s, want %s", got.Screen, tc.wantScreen)
			}
			if tc.wantReason != "" && got.LoadingReason != tc.wantReason {
				t.Errorf("reason = %q, want %q", got.LoadingReason, tc.wantReason)
			}
			if tc.wantMode != "" && got.MapMode != tc.wantMode {
				t.Errorf("map mode = %s, want %s", got.MapMode, tc.wantMode)
			}
		})
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	in := RoutingInput{Authenticated: true, ProfileStatus: models.ProfileStatusExists, Step: models.StepNone, HasLocation: true}
	first := Decide(in)
	for i := 0; i < 100; i++ {
		if got := Decide(in); got != first {
			t.Fatalf("Decide is not deterministic: %+v vs %+v", got, first)
		}
	}
}
