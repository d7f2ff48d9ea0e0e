package triage

import (
	"fmt"
	"time"
)

// Workflow status values reported alongside the clinical decision. The
// decision itself is never blocked by the workflow outcome.
const (
	WorkflowLogged         = "logged"          // no consent given, nothing persisted
	WorkflowSaved          = "saved"           // case record committed
	WorkflowCancelled      = "cancelled"       // consent withheld at commit time
	WorkflowIntegrityError = "integrity_error" // fingerprint mismatch, write refused
	WorkflowFailed         = "failed"          // store rejected the write
)

// Summary is the clinician-facing structured note.
type Summary struct {
	ChiefComplaint     string   `json:"chief_complaint"`
	History            string   `json:"history"`
	RedFlagsIdentified []string `json:"red_flags_identified,omitempty"`
	RiskLevel          Level    `json:"risk_level"`
	RecommendedAction  string   `json:"recommended_action,omitempty"`
	ClinicianNote      string   `json:"clinician_note"`
}

// FallbackSummary is the substitute produced when the summary adapter
// fails. It carries the decision's level so the note never understates
// risk.
func FallbackSummary(sig *SignalSet, dec *Decision, cause error) *Summary {
	chief := "not recorded"
	if sig != nil && len(sig.Symptoms) > 0 {
		chief = sig.Symptoms[0]
	}
	return &Summary{
		ChiefComplaint: chief,
		History:        "Structured summary unavailable.",
		RiskLevel:      dec.Level,
		ClinicianNote:  fmt.Sprintf("Fail-safe summary: %v. Manual review of the raw intake is required.", cause),
	}
}

// FollowUp holds the questions and safety-net guidance returned to the
// patient alongside the decision.
type FollowUp struct {
	Questions       []string `json:"follow_up_questions"`
	SafetyNetAdvice string   `json:"safety_net_advice"`
	CriticalFlag    bool     `json:"critical_flag"`
	Rationale       string   `json:"rationale,omitempty"`
}

// FallbackFollowUp is the high-safety substitute used when the follow-up
// adapter fails.
func FallbackFollowUp(dec *Decision, cause error) *FollowUp {
	return &FollowUp{
		Questions: []string{
			"Have your symptoms changed or worsened since you first noticed them?",
			"Do you have any long-term medical conditions or take regular medication?",
		},
		SafetyNetAdvice: "If your symptoms worsen, or you develop chest pain, difficulty breathing, or confusion, contact emergency services immediately.",
		CriticalFlag:    dec.Level.AtLeast(LevelUrgent),
		Rationale:       fmt.Sprintf("Fail-safe guidance: %v", cause),
	}
}

// Audit grades a completed pipeline run: a deterministic safety score plus
// an optional model-judge report.
type Audit struct {
	SafetyScore int          `json:"final_safety_score"`
	SafetyPass  bool         `json:"safety_pass"`
	RuleNotes   []string     `json:"rule_audit,omitempty"`
	Judge       *JudgeReport `json:"judge_report,omitempty"`
}

// JudgeReport is the model judge's grading of the run.
type JudgeReport struct {
	ClinicalAccuracy      float64 `json:"clinical_accuracy"`
	TriageAppropriateness float64 `json:"triage_appropriateness"`
	SummaryClarity        float64 `json:"summary_clarity"`
	DangerousOmissions    bool    `json:"dangerous_omissions"`
	Comment               string  `json:"comment,omitempty"`
}

// Result is the full outcome of one pipeline run.
type Result struct {
	ID             string     `json:"id"`
	PatientID      string     `json:"patient_id,omitempty"`
	Signals        *SignalSet `json:"patient"`
	RuleLevel      Level      `json:"rule_level"`
	Decision       *Decision  `json:"triage"`
	Summary        *Summary   `json:"clinical_summary"`
	FollowUp       *FollowUp  `json:"follow_up"`
	Audit          *Audit     `json:"audit,omitempty"`
	WorkflowStatus string     `json:"workflow_status"`
	CaseID         string     `json:"case_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	Duration       float64    `json:"duration_seconds"`
}

// CaseRecord is the persisted clinical case, the EHR-bound artifact.
type CaseRecord struct {
	CaseID      string     `json:"case_id"`
	IntakeID    string     `json:"intake_id"`
	PatientID   string     `json:"patient_id,omitempty"`
	Level       Level      `json:"triage_level"`
	Signals     *SignalSet `json:"patient"`
	Decision    *Decision  `json:"triage"`
	Summary     *Summary   `json:"summary"`
	Fingerprint string     `json:"integrity_hash"`
	Consent     bool       `json:"consent_captured"`
	AppVersion  string     `json:"app_version,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
