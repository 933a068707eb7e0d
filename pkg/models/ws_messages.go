package models

import "encoding/json"

// WsChatPayload is the body of a client "chat" frame: the running message
// list plus optional overrides for provider and tool scope.
type WsChatPayload struct {
	Messages    []Message             `json:"messages"`
	LLMProvider string                `json:"llmProvider,omitempty"`
	McpServers  []string              `json:"mcpServers,omitempty"`
	Metadata    *ConversationMetadata `json:"metadata,omitempty"`
}

// WsClientMessage is a frame received on the chat WebSocket. Type selects
// which of the other fields is populated; unused fields are omitted on the
// wire via the accompanying MarshalJSON-free tagged encoding in the gateway
// layer, which decodes directly off Type before touching Payload.
type WsClientMessage struct {
	Type    string          `json:"type"`
	ApiKey  string          `json:"apiKey,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	WsClientAuth   = "auth"
	WsClientChat   = "chat"
	WsClientCancel = "cancel"
	WsClientPing   = "ping"
)

// WsServerMessage is a frame sent to the chat WebSocket client. Only the
// field matching Type is populated; MarshalJSON projects that subset onto
// the wire so every variant reuses the same "message" key the original
// protocol uses for both a status string and a full Message object.
type WsServerMessage struct {
	Type      string
	Text      string // auth_success.message, status.message, stream.message
	Error     string
	Status    string
	Iteration uint32
	ToolCalls string
	Msg       *Message
	Payload   *ChatResponse
}

const (
	WsServerAuthSuccess  = "auth_success"
	WsServerAuthError    = "auth_error"
	WsServerStatus       = "status"
	WsServerStream       = "stream"
	WsServerMessageFrame = "message"
	WsServerChatComplete = "chat_complete"
	WsServerError        = "error"
	WsServerPong         = "pong"
)

func (m WsServerMessage) MarshalJSON() ([]byte, error) {
	out := map[string]any{"type": m.Type}
	switch m.Type {
	case WsServerAuthSuccess:
		out["message"] = m.Text
	case WsServerAuthError:
		out["error"] = m.Error
	case WsServerStatus:
		out["status"] = m.Status
		if m.Text != "" {
			out["message"] = m.Text
		}
	case WsServerStream:
		out["iteration"] = m.Iteration
		out["message"] = m.Text
		if m.ToolCalls != "" {
			out["tool_calls"] = m.ToolCalls
		}
	case WsServerMessageFrame:
		out["message"] = m.Msg
	case WsServerChatComplete:
		out["payload"] = m.Payload
	case WsServerError:
		out["error"] = m.Error
	case WsServerPong:
	}
	return json.Marshal(out)
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	ApiKey      string                `json:"apiKey"`
	Messages    []Message             `json:"messages"`
	LLMProvider string                `json:"llmProvider,omitempty"`
	McpServers  []string              `json:"mcpServers,omitempty"`
	Metadata    *ConversationMetadata `json:"metadata,omitempty"`
}

// ChatResponse is the body returned from POST /api/chat and embedded in a
// chat_complete WebSocket frame.
type ChatResponse struct {
	ConversationID string    `json:"conversationId"`
	Response       Message   `json:"response"`
	AllMessages    []Message `json:"allMessages"`
}
