// Package openai implements llm.Provider via the OpenAI chat completion
// API.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/medflow/internal/llm"
)

// Client calls the OpenAI chat completion API.
type Client struct {
	client  *goopenai.Client
	model   string
	onUsage llm.UsageHook
}

// New creates an OpenAI client with the given API key and model name.
// onUsage may be nil.
func New(apiKey, model string, onUsage llm.UsageHook) *Client {
	return &Client{
		client:  goopenai.NewClient(apiKey),
		model:   model,
		onUsage: onUsage,
	}
}

// Complete sends a single-shot generation request as a system + user
// message pair.
func (c *Client) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	if c.onUsage != nil {
		c.onUsage(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	}

	return &llm.Response{
		Text: resp.Choices[0].Message.Content,
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
