package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/spider/internal/backoff"
)

const TransportWS TransportType = "ws"

// WSTransport implements the MCP WebSocket transport: JSON-RPC 2.0 frames
// over a single gorilla/websocket connection, correlated by request ID the
// same way StdioTransport correlates by stdin/stdout line. Only the initial
// dial is retried with backoff; once an open socket drops, readLoop marks
// the transport disconnected and the socket is not redialled.
type WSTransport struct {
	config *ServerConfig
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn

	pending   map[int64]chan *JSONRPCResponse
	pendingMu sync.Mutex
	events    chan *JSONRPCNotification
	nextID    atomic.Int64

	connected atomic.Bool
	stopChan  chan struct{}
	wg        sync.WaitGroup

	reconnectPolicy backoff.BackoffPolicy
}

// NewWSTransport creates a WebSocket transport for the given server config.
func NewWSTransport(cfg *ServerConfig) *WSTransport {
	return &WSTransport{
		config:          cfg,
		logger:          slog.Default().With("mcp_server", cfg.ID, "transport", "ws"),
		pending:         make(map[int64]chan *JSONRPCResponse),
		events:          make(chan *JSONRPCNotification, 100),
		stopChan:        make(chan struct{}),
		reconnectPolicy: backoff.BackoffPolicy{InitialMs: 1000, MaxMs: 10000, Factor: 2, Jitter: 0},
	}
}

// Connect dials the server's WebSocket URL, retrying up to 3 times with
// exponential backoff (1s, 2s, 4s, capped at 10s) before giving up.
func (t *WSTransport) Connect(ctx context.Context) error {
	if t.config.URL == "" {
		return fmt.Errorf("url is required for ws transport")
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.config.URL, nil)
		if err == nil {
			t.mu.Lock()
			t.conn = conn
			t.mu.Unlock()
			t.connected.Store(true)
			t.wg.Add(1)
			go t.readLoop()
			return nil
		}
		lastErr = err
		if attempt == 3 {
			break
		}
		wait := backoff.ComputeBackoff(t.reconnectPolicy, attempt)
		t.logger.Warn("ws connect failed, retrying", "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("connect after 3 attempts: %w", lastErr)
}

// Close closes the WebSocket connection.
func (t *WSTransport) Close() error {
	if !t.connected.CompareAndSwap(true, false) {
		return nil
	}
	close(t.stopChan)
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	t.wg.Wait()
	return nil
}

// Call sends a JSON-RPC request and waits for its correlated response.
func (t *WSTransport) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !t.connected.Load() {
		return nil, fmt.Errorf("not connected")
	}

	id := t.nextID.Add(1)
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		req.Params = paramsJSON
	}

	respChan := make(chan *JSONRPCResponse, 1)
	t.pendingMu.Lock()
	t.pending[id] = respChan
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, id)
		t.pendingMu.Unlock()
	}()

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	timeout := t.config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	select {
	case resp := <-respChan:
		if resp.Error != nil {
			return nil, fmt.Errorf("MCP error %d: %s", resp.Error.Code, resp.Error.Message)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("request timeout after %v", timeout)
	case <-t.stopChan:
		return nil, fmt.Errorf("transport closed")
	}
}

// Notify sends a one-way JSON-RPC notification.
func (t *WSTransport) Notify(ctx context.Context, method string, params any) error {
	if !t.connected.Load() {
		return fmt.Errorf("not connected")
	}
	notif := JSONRPCNotification{JSONRPC: "2.0", Method: method}
	if params != nil {
		paramsJSON, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		notif.Params = paramsJSON
	}
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	return conn.WriteJSON(notif)
}

// Events returns the notification channel.
func (t *WSTransport) Events() <-chan *JSONRPCNotification {
	return t.events
}

// Requests returns the server-initiated request channel. Spider's MCP
// servers never initiate requests (no sampling support), so this channel
// never receives.
func (t *WSTransport) Requests() <-chan *JSONRPCRequest {
	return nil
}

// Respond is a no-op: see Requests.
func (t *WSTransport) Respond(ctx context.Context, id any, result any, rpcErr *JSONRPCError) error {
	return fmt.Errorf("ws transport does not accept server-initiated requests")
}

// Connected reports whether the socket is currently open.
func (t *WSTransport) Connected() bool {
	return t.connected.Load()
}

func (t *WSTransport) readLoop() {
	defer t.wg.Done()
	defer t.connected.Store(false)

	for {
		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-t.stopChan:
			default:
				t.logger.Warn("ws read error, connection lost", "error", err)
			}
			return
		}
		t.processFrame(data)
	}
}

func (t *WSTransport) processFrame(data []byte) {
	var resp JSONRPCResponse
	if err := json.Unmarshal(data, &resp); err == nil && resp.ID != nil {
		id, ok := normalizeID(resp.ID)
		if !ok {
			t.logger.Warn("unexpected response ID type", "id", resp.ID)
			return
		}
		t.pendingMu.Lock()
		if ch, ok := t.pending[id]; ok {
			select {
			case ch <- &resp:
			default:
			}
			delete(t.pending, id)
		}
		t.pendingMu.Unlock()
		return
	}

	var notif JSONRPCNotification
	if err := json.Unmarshal(data, &notif); err == nil && notif.Method != "" {
		select {
		case t.events <- &notif:
		default:
			t.logger.Warn("notification channel full, dropping")
		}
	}
}

func normalizeID(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
