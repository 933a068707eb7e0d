package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/spider/internal/agentloop"
	"github.com/haasonsaas/spider/internal/auth"
	"github.com/haasonsaas/spider/internal/broker"
	"github.com/haasonsaas/spider/internal/convstore"
	"github.com/haasonsaas/spider/internal/keystore"
	"github.com/haasonsaas/spider/internal/llm"
	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/internal/oauthproxy"
	"github.com/haasonsaas/spider/internal/state"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	keys := keystore.New(nil)
	adminKey := keys.EnsureAdminGUIKey()
	authSvc := auth.NewService(auth.Config{}, keys)
	mcpManager := mcp.NewManager(&mcp.Config{Enabled: false}, nil)
	tb := broker.New(mcpManager, nil, nil)
	conv := convstore.New(t.TempDir(), nil)
	st := state.New(state.DefaultRuntimeConfig())
	loop := agentloop.New(keys, authSvc, mcpManager, tb, conv, st, nil)

	srv := New(Config{Host: "127.0.0.1", HTTPPort: 0}, Deps{
		Keys:  keys,
		Auth:  authSvc,
		MCP:   mcpManager,
		Conv:  conv,
		State: st,
		Loop:  loop,
		OAuth: oauthproxy.New(),
	})
	return srv, adminKey.Key
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	return resp
}

func TestHandleSetAndListAPIKeys(t *testing.T) {
	srv, adminKey := newTestServer(t)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp := postJSON(t, ts, "/api/set_api_key", map[string]string{
		"provider": "anthropic", "key": "sk-ant-test", "authKey": adminKey,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("set_api_key: expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/list_api_keys", map[string]string{"authKey": adminKey})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list_api_keys: expected 200, got %d", resp.StatusCode)
	}
	var keys []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(keys) != 1 || keys[0]["provider"] != "anthropic" {
		t.Fatalf("expected one anthropic key, got %+v", keys)
	}
}

func TestHandleListAPIKeysRejectsBadKey(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp := postJSON(t, ts, "/api/list_api_keys", map[string]string{"authKey": "not-a-real-key"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an invalid key, got %d", resp.StatusCode)
	}
}

func TestHandleGetAndUpdateConfig(t *testing.T) {
	srv, adminKey := newTestServer(t)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp := postJSON(t, ts, "/api/update_config", map[string]any{
		"maxTokens": 1024, "authKey": adminKey,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update_config: expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts, "/api/get_config", map[string]string{"authKey": adminKey})
	var cfg map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if int(cfg["maxTokens"].(float64)) != 1024 {
		t.Fatalf("expected updated maxTokens 1024, got %+v", cfg)
	}
}

func TestHandleChatSingleTurn(t *testing.T) {
	srv, adminKey := newTestServer(t)
	srv.loop = agentloopWithStubProvider(t, srv)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp := postJSON(t, ts, "/api/chat", map[string]any{
		"apiKey":   adminKey,
		"messages": []map[string]string{{"role": "user", "content": "Hello"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["conversationId"] == "" || out["conversationId"] == nil {
		t.Fatalf("expected a conversation id, got %+v", out)
	}
}

func TestHandleSSDReturnsAdminKey(t *testing.T) {
	srv, adminKey := newTestServer(t)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/api-ssd")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if buf.String() != adminKey {
		t.Fatalf("expected admin key %q, got %q", adminKey, buf.String())
	}
}

// fakeProvider lets TestHandleChatSingleTurn avoid a real Anthropic call.
type fakeProvider struct{}

func (fakeProvider) Name() string { return "anthropic" }
func (fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	return llm.CompletionResult{Content: "Hi"}, nil
}

func agentloopWithStubProvider(t *testing.T, srv *Server) *agentloop.Loop {
	t.Helper()
	srv.keys.SetProviderKey("anthropic", "sk-ant-test-key")
	l := agentloop.New(srv.keys, srv.auth, srv.mcp, broker.New(srv.mcp, nil, nil), srv.conv, srv.state, nil)
	l.SetProviderFactory(func(providerName, credential string) llm.Provider {
		return fakeProvider{}
	})
	return l
}
