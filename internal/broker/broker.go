// Package broker dispatches tool calls produced by the agentic loop onto
// either a connected MCP server or the Hypergrid registry.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/spider/internal/hypergrid"
	"github.com/haasonsaas/spider/internal/mcp"
)

// DefaultTimeout bounds a single tool call, per spec's 60s tool-call budget.
const DefaultTimeout = 60 * time.Second

// callResult carries the outcome of a tool call back to the waiting Invoke
// goroutine once the MCP manager's own transport-level request/response
// correlation (internal/mcp/transport_ws.go's pending map keyed by JSON-RPC
// id) resolves it.
type callResult struct {
	value *mcp.ToolCallResult
	err   error
}

// Broker dispatches tool invocations by server ID.
type Broker struct {
	mcpManager *mcp.Manager
	hypergrid  *hypergrid.Client
	logger     *slog.Logger
}

// New creates a Broker dispatching MCP calls through manager and Hypergrid
// calls through hg.
func New(manager *mcp.Manager, hg *hypergrid.Client, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		mcpManager: manager,
		hypergrid:  hg,
		logger:     logger.With("component", "broker"),
	}
}

// Invoke calls tool on serverID with args, returning the tool's raw content
// as JSON. channelID scopes the request id for tracing; conversationID is
// carried through to logging only.
func (b *Broker) Invoke(ctx context.Context, serverID string, channelID uint32, tool string, args json.RawMessage, conversationID string) (json.RawMessage, error) {
	if hgCfg, ok := b.hypergridConfig(serverID); ok {
		return b.invokeHypergrid(ctx, hgCfg, tool, args)
	}

	requestID := fmt.Sprintf("tool_%d_%s", channelID, uuid.NewString())

	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, fmt.Errorf("broker: invalid tool arguments: %w", err)
		}
	}

	result := make(chan callResult, 1)
	go func() {
		value, err := b.mcpManager.CallTool(ctx, serverID, tool, arguments)
		result <- callResult{value: value, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("broker: tool %q on %q: %w", tool, serverID, r.err)
		}
		return json.Marshal(r.value)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(DefaultTimeout):
		b.logger.Warn("tool call timed out", "server", serverID, "tool", tool, "request_id", requestID, "conversation", conversationID)
		return nil, fmt.Errorf("broker: tool %q on %q timed out after %s", tool, serverID, DefaultTimeout)
	}
}

// hypergridConfig reports whether serverID names a Hypergrid-backed server
// and, if so, its connection config.
func (b *Broker) hypergridConfig(serverID string) (hypergrid.Config, bool) {
	if b.hypergrid == nil {
		return hypergrid.Config{}, false
	}
	return b.hypergrid.ConfigFor(serverID)
}

func (b *Broker) invokeHypergrid(ctx context.Context, cfg hypergrid.Config, tool string, args json.RawMessage) (json.RawMessage, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return nil, fmt.Errorf("broker: invalid hypergrid arguments: %w", err)
		}
	}

	switch tool {
	case "hypergrid_authorize":
		if err := b.hypergrid.Authorize(ctx, cfg); err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{"content": []map[string]string{{"type": "text", "text": "authorized"}}})
	case "hypergrid_search":
		query, _ := params["query"].(string)
		return b.hypergrid.Search(ctx, cfg, query)
	case "hypergrid_call":
		providerID, _ := params["provider_id"].(string)
		providerName, _ := params["provider_name"].(string)
		argPairs := decodeHypergridArgs(params["arguments"])
		return b.hypergrid.Call(ctx, cfg, providerID, providerName, argPairs)
	default:
		return nil, fmt.Errorf("broker: unknown hypergrid tool %q", tool)
	}
}

func decodeHypergridArgs(raw any) [][2]string {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	result := make([][2]string, 0, len(items))
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		k, _ := pair[0].(string)
		v, _ := pair[1].(string)
		result = append(result, [2]string{k, v})
	}
	return result
}
