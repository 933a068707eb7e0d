package models

import "sync/atomic"

// WsConnection tracks one live MCP server connection: its channel ID, the
// last tool list it advertised, and whether the initialize handshake has
// completed. Never persisted; internal/mcp tracks its connections with its
// own Client type and does not use this record.
type WsConnection struct {
	ServerID    string
	ServerName  string
	ChannelID   uint32
	Tools       []Tool
	Initialized bool
}

// McpRequestType distinguishes what a PendingMcpRequest is waiting on, so
// the manager knows how to route the eventual response.
type McpRequestType int

const (
	McpRequestInitialize McpRequestType = iota
	McpRequestToolsList
	McpRequestToolCall
)

// PendingMcpRequest is an in-flight correlation record for one outstanding
// request_id. ToolName is only set when Type is McpRequestToolCall.
// internal/mcp does not use it: each transport keeps its own pending map
// keyed by JSON-RPC id.
type PendingMcpRequest struct {
	RequestID      string
	ConversationID string
	ServerID       string
	Type           McpRequestType
	ToolName       string
}

// ChatClient is a connected /ws chat session: the authenticated key that
// opened it, the conversation it is currently bound to (if any), and when
// it connected.
type ChatClient struct {
	ChannelID      uint32
	ApiKey         string
	ConversationID string
	ConnectedAt    int64
}

// ChatCancellation is the cooperative cancellation flag an in-flight
// agentic loop iteration checks between tool dispatches. The loop only
// observes it at iteration boundaries, never mid-tool-call.
type ChatCancellation struct {
	flag atomic.Bool
}

func (c *ChatCancellation) Cancel()          { c.flag.Store(true) }
func (c *ChatCancellation) IsCancelled() bool { return c.flag.Load() }
