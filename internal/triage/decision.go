package triage

import (
	"errors"
	"fmt"
)

const (
	// EmergencyAction is the fixed instruction attached to every
	// emergency-level decision.
	EmergencyAction = "Call emergency services now or go to the nearest emergency department. Do not wait."

	// FailSafeAction accompanies decisions built without a usable model
	// classification.
	FailSafeAction = "Seek immediate medical consultation."
)

// Decision is the final triage outcome for one intake.
type Decision struct {
	Level      Level   `json:"level"`
	Reasoning  string  `json:"reasoning"`
	Action     string  `json:"action"`
	Confidence float64 `json:"confidence_score"`
}

// FallbackDecision builds the conservative decision used when the
// classification adapter fails outright. The level is the deterministic
// rule result and the confidence is zeroed so downstream consumers know a
// human needs to look.
func FallbackDecision(ruleLevel Level, cause error) *Decision {
	d := &Decision{
		Level:      ruleLevel,
		Reasoning:  fmt.Sprintf("Fail-safe triggered: %v", cause),
		Action:     FailSafeAction,
		Confidence: 0,
	}
	if ruleLevel == LevelEmergency {
		d.Action = EmergencyAction
	}
	return d
}

// Reconcile merges the deterministic rule level (the floor) with the
// classification proposed by the model. The proposal is never trusted: it
// may raise the level but not lower it, and an active emergency floor
// rewrites the decision wholesale while keeping the model's reasoning for
// the audit trail. A nil or failed proposal yields the fail-safe decision.
// Reconcile is total and never returns nil.
func Reconcile(ruleLevel Level, proposed *Decision, err error) *Decision {
	if !ruleLevel.Valid() {
		ruleLevel = LevelRoutine
	}
	if err != nil {
		return FallbackDecision(ruleLevel, err)
	}
	if proposed == nil {
		return FallbackDecision(ruleLevel, errors.New("classifier returned no decision"))
	}
	d := *proposed
	if !d.Level.Valid() {
		return FallbackDecision(ruleLevel, fmt.Errorf("classifier proposed unknown level %q", string(d.Level)))
	}

	if ruleLevel == LevelEmergency {
		d.Level = LevelEmergency
		d.Reasoning = "EMERGENCY latch active: deterministic safety rules mandate the highest priority. Model assessment retained for audit: " + d.Reasoning
		d.Action = EmergencyAction
		return &d
	}

	if !d.Level.AtLeast(ruleLevel) {
		d.Reasoning = fmt.Sprintf("Priority raised from %s to %s by the deterministic safety floor. ", d.Level, ruleLevel) + d.Reasoning
		d.Level = ruleLevel
	}
	return &d
}
