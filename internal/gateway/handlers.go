package gateway

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/pkg/models"
)

// requirePermission accepts either a session JWT (Authorization: Bearer
// header, opt-in per gateway config) or the raw auth key embedded in the
// request body, and checks the resolved key against permission.
func (s *Server) requirePermission(w http.ResponseWriter, r *http.Request, authKey, permission string) bool {
	key, err := s.auth.ResolveCredential(r, authKey)
	if err != nil {
		writeError(w, err)
		return false
	}
	if err := s.auth.ValidateKey(key, permission); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

// --- Key Store endpoints ---

func (s *Server) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		Key      string `json:"key"`
		AuthKey  string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	s.keys.SetProviderKey(req.Provider, req.Key)
	writeMessage(w, "API key saved")
}

func (s *Server) handleListAPIKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthKey string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "read") {
		return
	}
	writeJSON(w, http.StatusOK, s.keys.ListProviderKeys())
}

func (s *Server) handleRemoveAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		AuthKey  string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	s.keys.RemoveProviderKey(req.Provider)
	writeMessage(w, "API key removed")
}

func (s *Server) handleCreateSpiderKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string   `json:"name"`
		Permissions []string `json:"permissions"`
		AdminKey    string   `json:"adminKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AdminKey, "admin") {
		return
	}
	writeJSON(w, http.StatusOK, s.keys.CreateSpiderKey(req.Name, req.Permissions))
}

func (s *Server) handleListSpiderKeys(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AdminKey string `json:"adminKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AdminKey, "admin") {
		return
	}
	writeJSON(w, http.StatusOK, s.keys.ListSpiderKeys())
}

func (s *Server) handleRevokeSpiderKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		KeyID    string `json:"keyId"`
		AdminKey string `json:"adminKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AdminKey, "admin") {
		return
	}
	if !s.keys.RevokeSpiderKey(req.KeyID) {
		writeError(w, &GatewayError{Kind: ErrKindBadRequest, Message: "spider key not found"})
		return
	}
	writeMessage(w, "Spider key revoked")
}

// --- MCP Connection Manager endpoints ---

func (s *Server) handleAddMcpServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string                `json:"name"`
		Transport models.TransportConfig `json:"transport"`
		AuthKey   string                `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}

	serverID := uuid.NewString()
	cfg := &mcp.ServerConfig{
		ID:        serverID,
		Name:      req.Name,
		Transport: mcp.TransportType(req.Transport.TransportType),
		Command:   req.Transport.Command,
		Args:      req.Transport.Args,
		URL:       req.Transport.URL,
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, &GatewayError{Kind: ErrKindConfig, Message: err.Error()})
		return
	}
	s.mcp.AddServer(cfg)
	writeJSON(w, http.StatusOK, map[string]string{"serverId": serverID})
}

func (s *Server) handleListMcpServers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthKey string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "read") {
		return
	}
	writeJSON(w, http.StatusOK, s.mcp.AsMcpServerModels())
}

func (s *Server) handleConnectMcpServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID string `json:"serverId"`
		AuthKey  string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	if err := s.mcp.Connect(r.Context(), req.ServerID); err != nil {
		writeError(w, &GatewayError{Kind: ErrKindUpstream, Message: err.Error()})
		return
	}
	writeMessage(w, "Connected")
}

func (s *Server) handleDisconnectMcpServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID string `json:"serverId"`
		AuthKey  string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	if err := s.mcp.Disconnect(req.ServerID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, "Disconnected")
}

func (s *Server) handleRemoveMcpServer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID string `json:"serverId"`
		AuthKey  string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	if err := s.mcp.RemoveServer(req.ServerID); err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, "Removed")
}

// --- Conversation Store endpoints ---

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Limit   int    `json:"limit"`
		Offset  int    `json:"offset"`
		Client  string `json:"client"`
		AuthKey string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "read") {
		return
	}
	writeJSON(w, http.StatusOK, s.conv.List(r.Context(), req.Client, req.Limit, req.Offset))
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string `json:"conversationId"`
		AuthKey        string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "read") {
		return
	}
	conv, err := s.conv.Get(r.Context(), req.ConversationID)
	if err != nil {
		writeError(w, &GatewayError{Kind: ErrKindStorage, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// --- Runtime config endpoints ---

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthKey string `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "read") {
		return
	}
	cfg := s.state.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"defaultLlmProvider": cfg.DefaultLLMProvider,
		"maxTokens":          cfg.MaxTokens,
		"temperature":        cfg.Temperature,
	})
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DefaultLLMProvider *string  `json:"defaultLlmProvider"`
		MaxTokens          *int     `json:"maxTokens"`
		Temperature        *float32 `json:"temperature"`
		AuthKey            string   `json:"authKey"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !s.requirePermission(w, r, req.AuthKey, "write") {
		return
	}
	cfg := s.state.Config()
	if req.DefaultLLMProvider != nil {
		cfg.DefaultLLMProvider = *req.DefaultLLMProvider
	}
	if req.MaxTokens != nil {
		cfg.MaxTokens = *req.MaxTokens
	}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	s.state.UpdateConfig(cfg)
	writeMessage(w, "Configuration updated")
}

// --- Chat endpoint ---

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	channelID := s.state.NextChannelID()
	resp, err := s.loop.Run(r.Context(), req, channelID, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- OAuth Proxy endpoints ---

func (s *Server) handleExchangeOAuthToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		Verifier string `json:"verifier"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tokens, err := s.oauth.ExchangeCode(r.Context(), req.Code, req.Verifier)
	if err != nil {
		writeError(w, &GatewayError{Kind: ErrKindUpstream, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  tokens.AccessToken,
		"refresh": tokens.RefreshToken,
		"expires": tokens.ExpiresAt,
	})
}

func (s *Server) handleRefreshOAuthToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	tokens, err := s.oauth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, &GatewayError{Kind: ErrKindUpstream, Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access":  tokens.AccessToken,
		"refresh": tokens.RefreshToken,
		"expires": tokens.ExpiresAt,
	})
}

// --- Misc endpoints ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptimeSec": int(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleSSD(w http.ResponseWriter, r *http.Request) {
	key, ok := s.keys.AdminGUIKey()
	if !ok {
		http.Error(w, "no admin GUI key found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte(key.Key))
}
