// Package agents implements the LLM-backed pipeline stages: signal
// extraction, triage classification, clinical summary, follow-up
// generation, and the safety audit. Each stage is a single prompt/response
// call whose JSON output is validated before use; callers substitute
// explicit conservative defaults when a stage errors.
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/linnemanlabs/medflow/internal/llm"
)

const stageMaxTokens = 1024

// generateJSON runs one provider call and decodes the first JSON object in
// the output into out.
func generateJSON(ctx context.Context, p llm.Provider, system, prompt string, temperature float64, out any) error {
	resp, err := p.Complete(ctx, &llm.Request{
		System:      system,
		Prompt:      prompt,
		MaxTokens:   stageMaxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return err
	}
	raw := extractJSON(resp.Text)
	if raw == "" {
		return errors.New("no JSON object in model output")
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode model output: %w", err)
	}
	return nil
}

// extractJSON pulls the first top-level JSON object out of model text,
// tolerating markdown fences and prose around it.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
