// Package gateway is Spider's Session & Authorization Gateway: the HTTP and
// WebSocket surface that fronts the Key Store, MCP Connection Manager, and
// Agentic Loop, validating every request's permission before dispatch.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/spider/internal/agentloop"
	"github.com/haasonsaas/spider/internal/auth"
	"github.com/haasonsaas/spider/internal/convstore"
	"github.com/haasonsaas/spider/internal/keystore"
	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/internal/oauthproxy"
	"github.com/haasonsaas/spider/internal/state"
)

// Config configures one Server.
type Config struct {
	Host     string
	HTTPPort int
}

// Server wires every Spider backend component onto the HTTP/WS surface
// described by spec §6, mirroring the teacher's http_server.go mux-and-
// promhttp wiring style.
type Server struct {
	cfg Config

	keys      *keystore.Store
	auth      *auth.Service
	mcp       *mcp.Manager
	conv      *convstore.Store
	state     *state.State
	loop      *agentloop.Loop
	oauth     *oauthproxy.Proxy
	registrar state.ServiceRegistrar

	logger *slog.Logger

	httpServer   *http.Server
	httpListener net.Listener
	startTime    time.Time
}

// Deps bundles every collaborator a Server dispatches requests to.
type Deps struct {
	Keys      *keystore.Store
	Auth      *auth.Service
	MCP       *mcp.Manager
	Conv      *convstore.Store
	State     *state.State
	Loop      *agentloop.Loop
	OAuth     *oauthproxy.Proxy
	Registrar state.ServiceRegistrar
	Logger    *slog.Logger
}

// New constructs a Server from cfg and deps.
func New(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		keys:      deps.Keys,
		auth:      deps.Auth,
		mcp:       deps.MCP,
		conv:      deps.Conv,
		state:     deps.State,
		loop:      deps.Loop,
		oauth:     deps.OAuth,
		registrar: deps.Registrar,
		logger:    logger.With("component", "gateway"),
		startTime: time.Now(),
	}
}

// Mux builds the HTTP handler tree: REST API, /ws chat socket, /metrics,
// /healthz, and /api-ssd, which returns the admin GUI key without checking
// any session cookie or key.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api-ssd", s.handleSSD)

	mux.HandleFunc("/api/set_api_key", s.handleSetAPIKey)
	mux.HandleFunc("/api/list_api_keys", s.handleListAPIKeys)
	mux.HandleFunc("/api/remove_api_key", s.handleRemoveAPIKey)
	mux.HandleFunc("/api/create_spider_key", s.handleCreateSpiderKey)
	mux.HandleFunc("/api/list_spider_keys", s.handleListSpiderKeys)
	mux.HandleFunc("/api/revoke_spider_key", s.handleRevokeSpiderKey)
	mux.HandleFunc("/api/add_mcp_server", s.handleAddMcpServer)
	mux.HandleFunc("/api/list_mcp_servers", s.handleListMcpServers)
	mux.HandleFunc("/api/connect_mcp_server", s.handleConnectMcpServer)
	mux.HandleFunc("/api/disconnect_mcp_server", s.handleDisconnectMcpServer)
	mux.HandleFunc("/api/remove_mcp_server", s.handleRemoveMcpServer)
	mux.HandleFunc("/api/list_conversations", s.handleListConversations)
	mux.HandleFunc("/api/get_conversation", s.handleGetConversation)
	mux.HandleFunc("/api/get_config", s.handleGetConfig)
	mux.HandleFunc("/api/update_config", s.handleUpdateConfig)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/exchange_oauth_token", s.handleExchangeOAuthToken)
	mux.HandleFunc("/api/refresh_oauth_token", s.handleRefreshOAuthToken)

	mux.Handle("/ws", s.newChatSocket())

	return mux
}

// Start binds the listener and begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpListener = listener

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	if s.registrar != nil {
		if err := s.registrar.Register("Spider", "MCP client and agentic chat broker"); err != nil {
			s.logger.Warn("service registration failed", "error", err)
		}
	}

	s.logger.Info("gateway listening", "addr", addr)
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
