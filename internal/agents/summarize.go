package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medflow/internal/llm"
	"github.com/linnemanlabs/medflow/internal/triage"
)

const summarizeSystem = `You are a clinical documentation assistant writing a hand-off note for the receiving clinician.

Return a single JSON object with exactly these keys:
- "chief_complaint": the primary presenting problem, in clinical terms
- "history": short narrative of the presentation (onset, duration, course)
- "red_flags_identified": list of red flags, empty if none
- "risk_level": the triage level as given, do not change it
- "recommended_action": disposition recommendation for the clinician
- "clinician_note": anything the clinician should double-check

Be factual and concise. Do not speculate beyond the provided data.`

// Summarizer produces the clinician-facing structured note.
type Summarizer struct {
	provider llm.Provider
	logger   log.Logger
}

// NewSummarizer creates the summary stage.
func NewSummarizer(p llm.Provider, logger log.Logger) *Summarizer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Summarizer{provider: p, logger: logger}
}

// Summarize writes the hand-off note for the decision.
func (s *Summarizer) Summarize(ctx context.Context, sig *triage.SignalSet, dec *triage.Decision) (*triage.Summary, error) {
	payload, err := json.Marshal(struct {
		Patient *triage.SignalSet `json:"patient"`
		Triage  *triage.Decision  `json:"triage"`
	}{sig, dec})
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	var out triage.Summary
	if err := generateJSON(ctx, s.provider, summarizeSystem, string(payload), 0.2, &out); err != nil {
		return nil, err
	}

	// The model must not restate the risk level; pin it to the decision.
	if out.RiskLevel != dec.Level {
		s.logger.Warn(ctx, "summary risk level corrected",
			"summary_level", out.RiskLevel, "decision_level", dec.Level)
		out.RiskLevel = dec.Level
	}
	return &out, nil
}
