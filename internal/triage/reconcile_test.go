package triage

import (
	"errors"
	"strings"
	"testing"
)

func TestReconcileFloorNeverViolated(t *testing.T) {
	t.Parallel()

	levels := []Level{LevelSelfCare, LevelRoutine, LevelUrgent, LevelEmergency}
	for _, rule := range levels {
		for _, proposed := range levels {
			d := Reconcile(rule, &Decision{Level: proposed, Reasoning: "model view", Confidence: 0.9}, nil)
			if !d.Level.AtLeast(rule) {
				t.Errorf("rule=%s proposed=%s: result %s is below the floor", rule, proposed, d.Level)
			}
		}
	}
}

func TestReconcileEmergencyFloor(t *testing.T) {
	t.Parallel()

	proposed := &Decision{
		Level:      LevelRoutine,
		Reasoning:  "appears stable",
		Action:     "rest at home",
		Confidence: 0.8,
	}
	d := Reconcile(LevelEmergency, proposed, nil)

	if d.Level != LevelEmergency {
		t.Fatalf("level = %s, want emergency", d.Level)
	}
	if d.Action != EmergencyAction {
		t.Errorf("action = %q, want the fixed emergency action", d.Action)
	}
	if !strings.Contains(d.Reasoning, "EMERGENCY latch active") {
		t.Errorf("reasoning missing latch annotation: %q", d.Reasoning)
	}
	// The model's view survives as a suffix for the audit trail.
	if !strings.HasSuffix(d.Reasoning, "appears stable") {
		t.Errorf("reasoning should preserve the model view as suffix: %q", d.Reasoning)
	}
	// Confidence from the proposal is preserved; only fail-safe zeroes it.
	if d.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", d.Confidence)
	}
}

func TestReconcileRaisesToFloor(t *testing.T) {
	t.Parallel()

	proposed := &Decision{Level: LevelSelfCare, Reasoning: "minor complaint", Confidence: 0.7}
	d := Reconcile(LevelUrgent, proposed, nil)

	if d.Level != LevelUrgent {
		t.Fatalf("level = %s, want urgent", d.Level)
	}
	if !strings.Contains(d.Reasoning, "raised from self-care to urgent") {
		t.Errorf("reasoning missing override note: %q", d.Reasoning)
	}
	if !strings.HasSuffix(d.Reasoning, "minor complaint") {
		t.Errorf("model reasoning should be preserved: %q", d.Reasoning)
	}
}

func TestReconcileAcceptsProposalAboveFloor(t *testing.T) {
	t.Parallel()

	proposed := &Decision{Level: LevelUrgent, Reasoning: "concerning combination", Action: "same-day review", Confidence: 0.85}
	d := Reconcile(LevelRoutine, proposed, nil)

	if d.Level != LevelUrgent {
		t.Fatalf("level = %s, want urgent (model may escalate)", d.Level)
	}
	if d.Reasoning != "concerning combination" || d.Action != "same-day review" {
		t.Error("an in-bounds proposal should pass through unmodified")
	}
}

func TestReconcileFallback(t *testing.T) {
	t.Parallel()

	cause := errors.New("provider timeout")
	d := Reconcile(LevelUrgent, nil, cause)

	if d == nil {
		t.Fatal("Reconcile must be total")
	}
	if d.Level != LevelUrgent {
		t.Errorf("level = %s, want the rule level", d.Level)
	}
	if d.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", d.Confidence)
	}
	if d.Action != FailSafeAction {
		t.Errorf("action = %q, want fail-safe action", d.Action)
	}
	if !strings.Contains(d.Reasoning, "Fail-safe triggered") || !strings.Contains(d.Reasoning, "provider timeout") {
		t.Errorf("reasoning should name the failure: %q", d.Reasoning)
	}
}

func TestReconcileFallbackEmergencyAction(t *testing.T) {
	t.Parallel()

	d := Reconcile(LevelEmergency, nil, errors.New("boom"))
	if d.Level != LevelEmergency {
		t.Fatalf("level = %s, want emergency", d.Level)
	}
	if d.Action != EmergencyAction {
		t.Errorf("an emergency fail-safe must carry the emergency action, got %q", d.Action)
	}
}

func TestReconcileRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	d := Reconcile(LevelRoutine, &Decision{Level: Level("critical"), Confidence: 0.99}, nil)
	if d.Level != LevelRoutine {
		t.Errorf("level = %s, want the rule level", d.Level)
	}
	if d.Confidence != 0 {
		t.Errorf("an unparseable proposal must become a fail-safe, confidence = %v", d.Confidence)
	}
}

func TestReconcileNilProposalWithoutError(t *testing.T) {
	t.Parallel()

	d := Reconcile(LevelRoutine, nil, nil)
	if d == nil || d.Level != LevelRoutine || d.Confidence != 0 {
		t.Errorf("nil proposal must degrade to fail-safe at the rule level, got %+v", d)
	}
}
