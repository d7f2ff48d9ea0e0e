// Package llm defines the provider-neutral interface for the single-shot
// text generation calls made by the intake agents.
package llm

import "context"

// Request is one generation call: a system instruction plus a user prompt.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Usage is the token accounting for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response carries the generated text and usage.
type Response struct {
	Text  string
	Usage Usage
}

// Provider is implemented by each LLM backend.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// UsageHook observes token usage per provider call. Wired to metrics; may
// be nil.
type UsageHook func(inputTokens, outputTokens int)
