package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/medflow/internal/llm"
	"github.com/linnemanlabs/medflow/internal/triage"
)

const followUpSystem = `You are a triage nurse preparing the patient-facing close of an intake conversation.

Return a single JSON object with exactly these keys:
- "follow_up_questions": two or three questions that would most improve the clinical picture
- "safety_net_advice": one sentence telling the patient exactly when to seek immediate help
- "critical_flag": true if the presentation is urgent or emergency
- "rationale": one sentence on why these questions matter

Use plain, non-alarming language. Never downplay emergency guidance.`

// FollowUp generates patient-facing questions and safety-net advice.
type FollowUp struct {
	provider llm.Provider
	logger   log.Logger
}

// NewFollowUp creates the follow-up stage.
func NewFollowUp(p llm.Provider, logger log.Logger) *FollowUp {
	if logger == nil {
		logger = log.Nop()
	}
	return &FollowUp{provider: p, logger: logger}
}

// Generate produces the follow-up block for the decision.
func (f *FollowUp) Generate(ctx context.Context, sig *triage.SignalSet, dec *triage.Decision) (*triage.FollowUp, error) {
	payload, err := json.Marshal(struct {
		Patient *triage.SignalSet `json:"patient"`
		Triage  *triage.Decision  `json:"triage"`
	}{sig, dec})
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	var out triage.FollowUp
	if err := generateJSON(ctx, f.provider, followUpSystem, string(payload), 0.3, &out); err != nil {
		return nil, err
	}

	// The critical flag is derived from the decision, not trusted from the
	// model.
	out.CriticalFlag = dec.Level.AtLeast(triage.LevelUrgent)
	return &out, nil
}
