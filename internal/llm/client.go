// Package llm wraps the generation collaborator: an OpenAI-compatible
// chat-completion endpoint with exactly two configured model tiers. The core
// never sees inside a call. It picks a tier, bounds concurrency upstream,
// and pays per invocation.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Tier selects the cheap or expensive generation model.
type Tier string

const (
	TierCheap     Tier = "cheap"
	TierExpensive Tier = "expensive"
)

// Generator is the boundary the scheduler dispatches against. High-latency
// (seconds); callers own timeouts via ctx.
type Generator interface {
	Generate(ctx context.Context, prompt string, tier Tier) (string, error)
}

// Client is the production Generator.
type Client struct {
	api            *openai.Client
	cheapModel     string
	expensiveModel string
	maxTokens      int

	// Client-side rate limit: max calls per minute across all tiers.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewClient creates a generation client. Returns nil if apiKey is empty
// (generation disabled; the orchestrator skips thinking entirely).
func NewClient(apiKey, baseURL, cheapModel, expensiveModel string) *Client {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:            openai.NewClientWithConfig(cfg),
		cheapModel:     cheapModel,
		expensiveModel: expensiveModel,
		maxTokens:      400,
		maxPerMin:      30,
	}
}

// Enabled reports whether the client can make calls.
func (c *Client) Enabled() bool { return c != nil }

// Generate sends one prompt to the tier's model and returns the text.
func (c *Client) Generate(ctx context.Context, prompt string, tier Tier) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("generation client not configured")
	}

	c.mu.Lock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		c.mu.Unlock()
		return "", fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}
	c.callCount++
	c.mu.Unlock()

	model := c.cheapModel
	if tier == TierExpensive {
		model = c.expensiveModel
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generation call (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty generation response (%s)", model)
	}

	slog.Debug("generation call",
		"model", model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return resp.Choices[0].Message.Content, nil
}
