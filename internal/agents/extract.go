package agents

import (
	"context"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medflow/internal/llm"
	"github.com/linnemanlabs/medflow/internal/triage"
)

const extractSystem = `You are a clinical intake specialist. Extract structured information from the patient's message.

Return a single JSON object with exactly these keys:
- "symptoms": list of symptoms mentioned (strings)
- "duration": how long the symptoms have been present, or "" if not stated
- "severity": one of "mild", "moderate", "severe"; use "unknown" if the message gives no indication
- "risk_factors": list of relevant conditions or patient groups (e.g. "diabetes", "elderly", "infant")
- "red_flags": list of alarming features that need urgent attention
- "brief_summary": one sentence summarizing the presentation

If a field is not mentioned, return an empty list or empty string. Do not invent information.`

// Extractor turns a free-text patient message into a normalized signal
// set.
type Extractor struct {
	provider llm.Provider
	logger   log.Logger
}

// NewExtractor creates the extraction stage.
func NewExtractor(p llm.Provider, logger log.Logger) *Extractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &Extractor{provider: p, logger: logger}
}

// Analyse extracts and normalizes clinical signals from the message.
func (e *Extractor) Analyse(ctx context.Context, message string) (*triage.SignalSet, error) {
	var out triage.SignalSet
	if err := generateJSON(ctx, e.provider, extractSystem, "Patient message: "+message, 0.1, &out); err != nil {
		return nil, err
	}
	out.Normalize()
	e.logger.Info(ctx, "signals extracted",
		"symptoms", len(out.Symptoms),
		"red_flags", len(out.RedFlags),
		"severity", out.Severity,
	)
	return &out, nil
}
