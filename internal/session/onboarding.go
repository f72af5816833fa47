// Package session provides the onboarding step machine.
package session

import (
	"fmt"
	"log/slog"

	"github.com/wayfarer-app/wayfarer/internal/models"
)

// StepMachine tracks a first-time or cross-product user through the linear
// onboarding sequence: none -> nickname -> voice -> complete -> none. The
// step screens themselves are external collaborators; the machine only tracks
// which one is active and what payload flows to the next.
type StepMachine struct {
	step     models.OnboardingStep
	nickname string
	voice    *models.VoiceResult
}

// NewStepMachine creates a machine with no onboarding active.
func NewStepMachine() *StepMachine {
	return &StepMachine{step: models.StepNone}
}

// EntryStep decides which step, if any, a user enters when profile status
// resolves. Brand-new users (no profile, or a profile without the completion
// marker and without baseline identity fields) start at nickname.
// Cross-product users, who carry identity fields from a sibling product but
// have not completed this product's onboarding, skip straight to voice.
func EntryStep(status models.ProfileStatus, profile *models.Profile) models.OnboardingStep {
	switch {
	case status == models.ProfileStatusNotExists:
		return models.StepNickname
	case status == models.ProfileStatusExists && profile != nil && !profile.OnboardingCompleted:
		if profile.HasBaselineIdentity() {
			return models.StepVoice
		}
		return models.StepNickname
	default:
		return models.StepNone
	}
}

// Step returns the currently active onboarding step.
func (m *StepMachine) Step() models.OnboardingStep {
	return m.step
}

// VoiceResult returns the payload carried from the voice step, if any.
func (m *StepMachine) VoiceResult() *models.VoiceResult {
	return m.voice
}

// Begin activates the given entry step. Beginning StepNone is a no-op.
func (m *StepMachine) Begin(step models.OnboardingStep) {
	if step == models.StepNone {
		return
	}
	slog.Info("StepMachine entering onboarding", "step", step)
	m.step = step
}

// Restore rehydrates the machine from a persisted step without transition checks.
func (m *StepMachine) Restore(step models.OnboardingStep) {
	if step == "" {
		step = models.StepNone
	}
	m.step = step
}

// CompleteNickname fires the nickname-step completion, advancing to voice.
func (m *StepMachine) CompleteNickname(nickname string) error {
	if err := m.transition(models.StepNickname, models.StepVoice); err != nil {
		return err
	}
	m.nickname = nickname
	return nil
}

// CompleteVoice fires the voice-step completion, carrying the score and
// reward payload forward to the complete screen.
func (m *StepMachine) CompleteVoice(result models.VoiceResult) error {
	if err := m.transition(models.StepVoice, models.StepComplete); err != nil {
		return err
	}
	m.voice = &result
	return nil
}

// GoHome fires the terminal transition back to none, closing the loop. It
// returns the voice payload so the caller can hand it to the transition flow.
func (m *StepMachine) GoHome() (*models.VoiceResult, error) {
	if err := m.transition(models.StepComplete, models.StepNone); err != nil {
		return nil, err
	}
	result := m.voice
	m.voice = nil
	m.nickname = ""
	return result, nil
}

// Reset clears all onboarding state. Only session teardown calls this.
func (m *StepMachine) Reset() {
	m.step = models.StepNone
	m.nickname = ""
	m.voice = nil
}

func (m *StepMachine) transition(from, to models.OnboardingStep) error {
	if m.step != from {
		err := fmt.Errorf("%w: expected %s, current is %s", models.ErrInvalidTransition, from, m.step)
		slog.Error("StepMachine invalid transition", "error", err, "expected", from, "current", m.step, "to", to)
		return err
	}
	m.step = to
	slog.Info("StepMachine transition succeeded", "from", from, "to", to)
	return nil
}
