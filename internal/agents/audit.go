package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medflow/internal/llm"
	"github.com/linnemanlabs/medflow/internal/triage"
)

const judgeSystem = `You are a senior medical auditor grading the output of a clinical intake pipeline. Evaluate whether the triage level is medically sound and whether the clinician summary is accurate. Identify whether any critical patient information was lost during processing.

Return a single JSON object with exactly these keys:
- "clinical_accuracy": number 1-10
- "triage_appropriateness": number 1-10
- "summary_clarity": number 1-10
- "dangerous_omissions": boolean
- "comment": short string`

// criticalTriggers are symptoms that must always carry an emergency
// level. Matched by exact element, the scan for these already happened
// upstream on substrings.
var criticalTriggers = []string{"chest pain", "difficulty breathing", "shortness of breath", "stroke"}

// Auditor grades a completed pipeline run: a deterministic guardrail
// score combined with a model judge. Judge failure degrades to the rule
// score with a failing judge report, never to an error.
type Auditor struct {
	provider llm.Provider
	logger   log.Logger
}

// NewAuditor creates the audit stage.
func NewAuditor(p llm.Provider, logger log.Logger) *Auditor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Auditor{provider: p, logger: logger}
}

// Evaluate grades the run. Best-effort: a judge failure is folded into
// the report as a failed audit rather than returned.
func (a *Auditor) Evaluate(ctx context.Context, sig *triage.SignalSet, dec *triage.Decision, sum *triage.Summary) *triage.Audit {
	ruleScore, notes := ruleBasedScore(sig, dec)

	judge, err := a.judge(ctx, sig, dec, sum)
	if err != nil {
		a.logger.Warn(ctx, "audit judge failed, degrading to rule score", "error", err)
		judge = &triage.JudgeReport{
			DangerousOmissions: true,
			Comment:            fmt.Sprintf("Auditor error: %v", err),
		}
	}

	// Dangerous omissions fail the audit outright; otherwise grade on the
	// guardrail score plus weighted judge dimensions.
	total := ruleScore + int(judge.ClinicalAccuracy*3) + int(judge.SummaryClarity*2)
	return &triage.Audit{
		SafetyScore: total,
		SafetyPass:  total > 50 && !judge.DangerousOmissions,
		RuleNotes:   notes,
		Judge:       judge,
	}
}

// ruleBasedScore applies the hard guardrails that do not depend on a
// model's judgement.
func ruleBasedScore(sig *triage.SignalSet, dec *triage.Decision) (int, []string) {
	score := 0
	var notes []string

	if sig != nil && len(sig.RedFlags) > 0 {
		score += 20
		notes = append(notes, "Red flags correctly parsed.")
	}

	critical := false
	if sig != nil {
		for _, trigger := range criticalTriggers {
			if slices.Contains(sig.Symptoms, trigger) {
				critical = true
				break
			}
		}
	}
	if critical && dec.Level != triage.LevelEmergency {
		score -= 60
		notes = append(notes, "CRITICAL FAILURE: high-risk symptom not triaged as emergency.")
	} else {
		score += 20
		notes = append(notes, "Triage level appears safe for the symptoms provided.")
	}

	return score, notes
}

func (a *Auditor) judge(ctx context.Context, sig *triage.SignalSet, dec *triage.Decision, sum *triage.Summary) (*triage.JudgeReport, error) {
	payload, err := json.Marshal(struct {
		Extraction *triage.SignalSet `json:"extraction"`
		Triage     *triage.Decision  `json:"triage"`
		Summary    *triage.Summary   `json:"summary"`
	}{sig, dec, sum})
	if err != nil {
		return nil, fmt.Errorf("marshal audit input: %w", err)
	}

	var out triage.JudgeReport
	if err := generateJSON(ctx, a.provider, judgeSystem, "INPUTS TO AUDIT: "+string(payload), 0, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
