package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/haasonsaas/spider/internal/schema"
	"github.com/haasonsaas/spider/pkg/models"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// anthropicBase holds the retry/backoff machinery and message/tool
// conversion shared by the API-key and OAuth-bearer variants, grounded on
// the teacher's internal/agent/providers.AnthropicProvider and BaseProvider.
type anthropicBase struct {
	client       anthropic.Client
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	name         string
}

func newAnthropicBase(name string, opts []option.RequestOption) anthropicBase {
	return anthropicBase{
		client:       anthropic.NewClient(opts...),
		maxRetries:   3,
		retryDelay:   time.Second,
		defaultModel: defaultAnthropicModel,
		name:         name,
	}
}

func (a *anthropicBase) Name() string { return a.name }

func (a *anthropicBase) complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	model := req.Model
	if model == "" {
		model = a.defaultModel
	}

	messages, err := a.convertMessages(req.Messages)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("anthropic: convert messages: %w", err)
	}

	tools, err := a.convertTools(req.Tools)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("anthropic: convert tools: %w", err)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	var message *anthropic.Message
	attempt := 0
	for {
		attempt++
		message, err = a.client.Messages.New(ctx, params)
		if err == nil {
			break
		}
		werr := wrapError(a.name, model, statusFromErr(err), err)
		if !isRetryableError(werr) || attempt >= a.maxRetries {
			return CompletionResult{}, werr
		}
		select {
		case <-ctx.Done():
			return CompletionResult{}, ctx.Err()
		case <-time.After(a.retryDelay * time.Duration(attempt)):
		}
	}

	return a.convertResult(message), nil
}

// convertMessages renders Spider's flat message log into Anthropic's
// request format. tool-role messages collapse to a user-role text summary,
// matching the original Rust adapter's cruder join rather than the
// teacher's native tool_result content blocks (Spider's wire contract
// deliberately preserves that behavior).
func (a *anthropicBase) convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		role := anthropic.MessageParamRoleUser
		if msg.Role == "assistant" {
			role = anthropic.MessageParamRoleAssistant
		}

		content := msg.Content
		if msg.ToolResultsJSON != "" {
			var results []models.ToolResult
			_ = json.Unmarshal([]byte(msg.ToolResultsJSON), &results)

			var b strings.Builder
			b.WriteString("Tool execution results:\n")
			for _, r := range results {
				fmt.Fprintf(&b, "- Tool call %s: %s\n", r.ToolCallID, r.Result)
			}
			content = b.String()
		} else if msg.ToolCallsJSON != "" {
			content = content + "\n[Tool calls pending]"
		}

		result = append(result, anthropic.MessageParam{
			Role:    role,
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(content)},
		})
	}

	return result, nil
}

func (a *anthropicBase) convertTools(tools []models.Tool) ([]anthropic.ToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}

	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		transformed, err := schema.Transform(tool.InputSchemaJSON)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
		}

		var inputSchema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(transformed, &inputSchema); err != nil {
			return nil, fmt.Errorf("tool %s: invalid schema: %w", tool.Name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(tool.Description)
		}
		result = append(result, toolParam)
	}
	return result, nil
}

func (a *anthropicBase) convertResult(message *anthropic.Message) CompletionResult {
	var text strings.Builder
	var calls []models.ToolCall

	for _, block := range message.Content {
		switch block.Type {
		case "text":
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(block.Text)
		case "tool_use":
			toolUse := block.AsToolUse()
			calls = append(calls, models.ToolCall{
				ID:         toolUse.ID,
				ToolName:   toolUse.Name,
				Parameters: string(toolUse.Input),
			})
		}
	}

	return CompletionResult{Content: text.String(), ToolCalls: calls}
}

func statusFromErr(err error) int {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// AnthropicKeyProvider completes chat turns using a plain Anthropic API key
// (x-api-key header).
type AnthropicKeyProvider struct {
	anthropicBase
}

// NewAnthropicKeyProvider builds a Provider authenticating with an
// Anthropic API key.
func NewAnthropicKeyProvider(apiKey string) *AnthropicKeyProvider {
	return &AnthropicKeyProvider{
		anthropicBase: newAnthropicBase("anthropic", []option.RequestOption{option.WithAPIKey(apiKey)}),
	}
}

// Complete implements Provider.
func (p *AnthropicKeyProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return p.complete(ctx, req)
}

// AnthropicOAuthProvider completes chat turns using an OAuth-shaped bearer
// credential (spec's OAuthToken) instead of a plain API key.
type AnthropicOAuthProvider struct {
	anthropicBase
}

// NewAnthropicOAuthProvider builds a Provider authenticating with an
// OAuth-session bearer token.
func NewAnthropicOAuthProvider(token string) *AnthropicOAuthProvider {
	opts := []option.RequestOption{
		option.WithHeader("Authorization", "Bearer "+token),
	}
	return &AnthropicOAuthProvider{
		anthropicBase: newAnthropicBase("anthropic-oauth", opts),
	}
}

// Complete implements Provider.
func (p *AnthropicOAuthProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	return p.complete(ctx, req)
}
