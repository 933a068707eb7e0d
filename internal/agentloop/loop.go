// Package agentloop implements Spider's agentic chat loop: the control flow
// that alternates LLM inference with tool execution until the assistant
// stops calling tools, streaming progress events to the caller's channel
// the whole way through.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/haasonsaas/spider/internal/auth"
	"github.com/haasonsaas/spider/internal/broker"
	"github.com/haasonsaas/spider/internal/convstore"
	"github.com/haasonsaas/spider/internal/keystore"
	"github.com/haasonsaas/spider/internal/llm"
	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/internal/state"
	"github.com/haasonsaas/spider/pkg/models"
)

// MaxIterations bounds a single chat's LLM/tool alternation so a
// never-terminating tool-calling loop cannot run forever.
const MaxIterations = 25

// Loop owns every collaborator the agentic control flow needs: credential
// resolution, the effective tool catalog, tool dispatch, and persistence.
type Loop struct {
	keys      *keystore.Store
	auth      *auth.Service
	mcp       *mcp.Manager
	broker    *broker.Broker
	conv      *convstore.Store
	state     *state.State
	providers func(providerName, credential string) llm.Provider
	logger    *slog.Logger
}

// New constructs a Loop that resolves providers with llm.NewProvider;
// SetProviderFactory replaces that factory.
func New(keys *keystore.Store, authSvc *auth.Service, mcpManager *mcp.Manager, tb *broker.Broker, conv *convstore.Store, st *state.State, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		keys:      keys,
		auth:      authSvc,
		mcp:       mcpManager,
		broker:    tb,
		conv:      conv,
		state:     st,
		providers: llm.NewProvider,
		logger:    logger.With("component", "agentloop"),
	}
}

// SetProviderFactory overrides how Run resolves a provider instance from a
// provider name and credential, letting tests substitute a fake Provider
// without a real vendor SDK call.
func (l *Loop) SetProviderFactory(factory func(providerName, credential string) llm.Provider) {
	l.providers = factory
}

// ErrCancelled is returned when a running chat's cancellation flag was set
// before the next iteration began.
var ErrCancelled = fmt.Errorf("request cancelled by user")

// Run executes the agentic loop for one chat request, streaming progress
// onto events, and returns the final response once the assistant stops
// requesting tool calls.
func (l *Loop) Run(ctx context.Context, req models.ChatRequest, channelID uint32, events chan<- models.WsServerMessage) (models.ChatResponse, error) {
	resp, err := l.run(ctx, req, channelID, events)
	if err != nil {
		emit(events, models.WsServerMessage{Type: models.WsServerError, Error: err.Error()})
	}
	return resp, err
}

// run implements the six-step algorithm; its sole caller, Run, is
// responsible for emitting the terminal error event exactly once.
func (l *Loop) run(ctx context.Context, req models.ChatRequest, channelID uint32, events chan<- models.WsServerMessage) (models.ChatResponse, error) {
	// 1. Validate and require write permission.
	if err := l.auth.ValidateKey(req.ApiKey, "write"); err != nil {
		return models.ChatResponse{}, fmt.Errorf("agentloop: %w", err)
	}

	// 2. Resolve the LLM credential.
	providerName := req.LLMProvider
	if providerName == "" {
		providerName = l.state.Config().DefaultLLMProvider
	}
	credential, err := l.resolveCredential(providerName, req.ApiKey)
	if err != nil {
		return models.ChatResponse{}, err
	}
	provider := l.providers(providerName, credential)

	// 3. Gather the effective tool catalog.
	tools := l.effectiveTools(req.McpServers)

	// 4. Mint a conversation id; seed working set.
	conversationID := convstore.NewConversationID()
	working := append([]models.Message(nil), req.Messages...)
	initialLen := len(working)

	cancellation := l.state.CancellationFor(channelID)
	emit(events, models.WsServerMessage{Type: models.WsServerStatus, Status: "processing"})

	cfg := l.state.Config()
	var final models.Message

	for iteration := 1; ; iteration++ {
		if iteration > MaxIterations {
			return models.ChatResponse{}, fmt.Errorf("agentloop: exceeded %d iterations without a final response", MaxIterations)
		}

		if cancellation.IsCancelled() {
			emit(events, models.WsServerMessage{Type: models.WsServerStatus, Status: "cancelled"})
			return models.ChatResponse{}, ErrCancelled
		}

		emit(events, models.WsServerMessage{
			Type:      models.WsServerStream,
			Iteration: uint32(iteration),
			Text:      fmt.Sprintf("Processing iteration %d…", iteration),
		})

		result, err := provider.Complete(ctx, llm.CompletionRequest{
			Messages:    working,
			Tools:       tools,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
		})
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("agentloop: llm call failed: %w", err)
		}

		if len(result.ToolCalls) == 0 {
			final = models.Message{Role: "assistant", Content: result.Content}
			break
		}

		toolCallsJSON, err := json.Marshal(result.ToolCalls)
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("agentloop: encoding tool calls: %w", err)
		}
		assistantMsg := models.Message{Role: "assistant", Content: result.Content, ToolCallsJSON: string(toolCallsJSON)}
		working = append(working, assistantMsg)
		emit(events, models.WsServerMessage{Type: models.WsServerMessageFrame, Msg: &assistantMsg})

		// 5(b). Invoke the broker for each call, strictly in order.
		toolResults := make([]models.ToolResult, 0, len(result.ToolCalls))
		for _, call := range result.ToolCalls {
			resultJSON := l.dispatchTool(ctx, call, channelID, conversationID)
			toolResults = append(toolResults, models.ToolResult{ToolCallID: call.ID, Result: resultJSON})
		}

		toolResultsJSON, err := json.Marshal(toolResults)
		if err != nil {
			return models.ChatResponse{}, fmt.Errorf("agentloop: encoding tool results: %w", err)
		}
		toolMsg := models.Message{Role: "tool", ToolResultsJSON: string(toolResultsJSON)}
		working = append(working, toolMsg)
		emit(events, models.WsServerMessage{Type: models.WsServerMessageFrame, Msg: &toolMsg})
	}

	// 6. Append the final response, persist, return.
	working = append(working, final)
	emit(events, models.WsServerMessage{Type: models.WsServerMessageFrame, Msg: &final})

	conv := &models.Conversation{
		ID:          conversationID,
		Messages:    working,
		LLMProvider: providerName,
		McpServers:  req.McpServers,
	}
	if req.Metadata != nil {
		conv.Metadata = *req.Metadata
	}
	if err := l.conv.Append(ctx, conv); err != nil {
		l.logger.Warn("conversation persistence failed", "conversation_id", conversationID, "error", err)
	}

	response := models.ChatResponse{
		ConversationID: conversationID,
		Response:       final,
		AllMessages:    working[initialLen:],
	}
	emit(events, models.WsServerMessage{Type: models.WsServerStatus, Status: "complete"})
	emit(events, models.WsServerMessage{Type: models.WsServerChatComplete, Payload: &response})
	return response, nil
}

// resolveCredential implements step 2: an OAuth-shaped api_key is used
// directly and only against Anthropic; otherwise the Spider key looks up
// the provider's stored credential (preferring an OAuth-flavored one).
func (l *Loop) resolveCredential(providerName, apiKey string) (string, error) {
	if keystore.IsOAuthToken(apiKey) {
		if providerName != "anthropic" {
			return "", fmt.Errorf("agentloop: oauth token credentials are only valid for the anthropic provider")
		}
		return apiKey, nil
	}
	credential, ok := l.keys.ResolveProviderKey(providerName)
	if !ok {
		return "", fmt.Errorf("agentloop: no stored credential for provider %q", providerName)
	}
	return credential, nil
}

// effectiveTools implements step 3: the union of tools from connected MCP
// servers that are either named in requested or, if requested is empty,
// every connected server.
func (l *Loop) effectiveTools(requested []string) []models.Tool {
	want := make(map[string]bool, len(requested))
	for _, id := range requested {
		want[id] = true
	}

	var tools []models.Tool
	for _, schema := range l.mcp.ToolSchemas() {
		if len(want) > 0 && !want[schema.ServerID] {
			continue
		}
		tools = append(tools, models.Tool{
			Name:            schema.Name,
			Description:     schema.Description,
			InputSchemaJSON: string(schema.InputSchema),
		})
	}
	return tools
}

// dispatchTool invokes one tool call and returns its result JSON, or a
// ToolResult-shaped error payload on failure — never an aborted loop, per
// spec's ToolUnavailable/ToolTimeout dispositions.
func (l *Loop) dispatchTool(ctx context.Context, call models.ToolCall, channelID uint32, conversationID string) string {
	serverID, _ := l.mcp.FindTool(call.ToolName)
	if serverID == "" {
		serverID = call.ToolName
	}

	result, err := l.broker.Invoke(ctx, serverID, channelID, call.ToolName, json.RawMessage(call.Parameters), conversationID)
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload)
	}
	return string(result)
}

func emit(events chan<- models.WsServerMessage, msg models.WsServerMessage) {
	if events == nil {
		return
	}
	events <- msg
}
