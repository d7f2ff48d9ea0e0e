package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medflow/internal/llm"
	"github.com/linnemanlabs/medflow/internal/triage"
)

const classifySystem = `You are a clinical triage validator reviewing extracted patient data to categorize risk.

A deterministic rule-based safety tool has already rated this presentation %q. Favor that rating unless the clinical picture clearly suggests a HIGHER risk level. Never argue for downgrading an "emergency" or "urgent" rating.

Return a single JSON object with exactly these keys:
- "level": one of "emergency", "urgent", "routine", "self-care"
- "reasoning": short clinical justification for the level
- "action": the next step the patient should take
- "confidence_score": number between 0.0 and 1.0`

// Classifier proposes a triage classification. The rule level is part of
// the prompt so the model anchors on it, but the output is never trusted:
// it always passes through triage.Reconcile.
type Classifier struct {
	provider llm.Provider
	logger   log.Logger
}

// NewClassifier creates the classification stage.
func NewClassifier(p llm.Provider, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Classifier{provider: p, logger: logger}
}

// Propose asks the model for a classification of the signal set.
func (c *Classifier) Propose(ctx context.Context, sig *triage.SignalSet, ruleLevel triage.Level) (*triage.Decision, error) {
	payload, err := json.Marshal(sig)
	if err != nil {
		return nil, fmt.Errorf("marshal signals: %w", err)
	}

	var out struct {
		Level      string  `json:"level"`
		Reasoning  string  `json:"reasoning"`
		Action     string  `json:"action"`
		Confidence float64 `json:"confidence_score"`
	}
	system := fmt.Sprintf(classifySystem, ruleLevel)
	if err := generateJSON(ctx, c.provider, system, "PATIENT DATA: "+string(payload), 0.1, &out); err != nil {
		return nil, err
	}

	level, err := triage.ParseLevel(out.Level)
	if err != nil {
		return nil, fmt.Errorf("classifier output: %w", err)
	}

	c.logger.Info(ctx, "classification proposed",
		"level", level,
		"rule_level", ruleLevel,
		"confidence", out.Confidence,
	)
	return &triage.Decision{
		Level:      level,
		Reasoning:  out.Reasoning,
		Action:     out.Action,
		Confidence: clamp01(out.Confidence),
	}, nil
}
