// Package llm adapts Spider's conversation/tool model onto concrete LLM
// vendor SDKs. Unlike the teacher's internal/agent/providers package, this
// adapter is deliberately synchronous: Spider streams iteration milestones
// over its own WebSocket protocol, not token-by-token deltas, so Complete
// returns one assembled result rather than a channel of chunks.
package llm

import (
	"context"

	"github.com/haasonsaas/spider/pkg/models"
)

// CompletionRequest bundles everything a Provider needs to produce one
// assistant turn.
type CompletionRequest struct {
	Model       string
	Messages    []models.Message
	Tools       []models.Tool
	MaxTokens   int
	Temperature float32
}

// CompletionResult is the assistant turn a Provider produced.
type CompletionResult struct {
	Content   string
	ToolCalls []models.ToolCall
}

// Provider completes one assistant turn against a specific LLM backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error)
	Name() string
}

// NotImplementedError marks a provider (or provider feature) that is
// registered but not yet implemented.
type NotImplementedError struct {
	Provider string
}

func (e *NotImplementedError) Error() string {
	return e.Provider + " provider not yet implemented"
}
