package agentloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/spider/internal/auth"
	"github.com/haasonsaas/spider/internal/broker"
	"github.com/haasonsaas/spider/internal/convstore"
	"github.com/haasonsaas/spider/internal/keystore"
	"github.com/haasonsaas/spider/internal/llm"
	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/internal/state"
	"github.com/haasonsaas/spider/pkg/models"
)

type stubProvider struct {
	name    string
	results []llm.CompletionResult
	calls   int
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResult, error) {
	r := p.results[p.calls]
	p.calls++
	return r, nil
}

func newTestLoop(t *testing.T, provider llm.Provider) (*Loop, *stubProvider) {
	t.Helper()
	keys := keystore.New(nil)
	keys.SetProviderKey("anthropic", "sk-ant-test-key")
	authSvc := auth.NewService(auth.Config{}, keys)
	keys.CreateSpiderKey("test", []string{"write"})

	mcpManager := mcp.NewManager(&mcp.Config{Enabled: false}, nil)
	tb := broker.New(mcpManager, nil, nil)
	conv := convstore.New(t.TempDir(), nil)
	st := state.New(state.DefaultRuntimeConfig())

	l := New(keys, authSvc, mcpManager, tb, conv, st, nil)
	sp, ok := provider.(*stubProvider)
	if !ok {
		t.Fatalf("expected *stubProvider")
	}
	l.providers = func(providerName, credential string) llm.Provider { return sp }
	return l, sp
}

func TestRunSingleTurnNoToolCalls(t *testing.T) {
	sp := &stubProvider{name: "anthropic", results: []llm.CompletionResult{
		{Content: "Hi"},
	}}
	l, _ := newTestLoop(t, sp)
	keys := l.keys
	spiderKey := keys.ListSpiderKeys()[0].Key

	events := make(chan models.WsServerMessage, 16)
	resp, err := l.Run(context.Background(), models.ChatRequest{
		ApiKey:   spiderKey,
		Messages: []models.Message{{Role: "user", Content: "Hello"}},
	}, 1000, events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Response.Content != "Hi" {
		t.Fatalf("expected response content Hi, got %q", resp.Response.Content)
	}
	close(events)
	var sawComplete bool
	for e := range events {
		if e.Type == models.WsServerChatComplete {
			sawComplete = true
		}
	}
	if !sawComplete {
		t.Fatalf("expected a chat_complete event")
	}
}

func TestRunRejectsMissingWritePermission(t *testing.T) {
	sp := &stubProvider{name: "anthropic", results: []llm.CompletionResult{{Content: "Hi"}}}
	l, _ := newTestLoop(t, sp)

	_, err := l.Run(context.Background(), models.ChatRequest{
		ApiKey:   "not-a-real-key",
		Messages: []models.Message{{Role: "user", Content: "Hello"}},
	}, 1001, nil)
	if err == nil {
		t.Fatalf("expected an auth error for an unknown key")
	}
}

func TestRunCancelledBetweenIterations(t *testing.T) {
	sp := &stubProvider{name: "anthropic", results: []llm.CompletionResult{
		{Content: "", ToolCalls: []models.ToolCall{{ID: "t1", ToolName: "echo", Parameters: "{}"}}},
		{Content: "done"},
	}}
	l, _ := newTestLoop(t, sp)
	spiderKey := l.keys.ListSpiderKeys()[0].Key
	channel := uint32(2000)

	// Pre-cancel before the loop ever runs: it must stop at the first
	// iteration boundary without calling the provider.
	l.state.CancellationFor(channel).Cancel()

	events := make(chan models.WsServerMessage, 16)
	_, err := l.Run(context.Background(), models.ChatRequest{
		ApiKey:   spiderKey,
		Messages: []models.Message{{Role: "user", Content: "Hello"}},
	}, channel, events)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
	if sp.calls != 0 {
		t.Fatalf("expected no provider calls once pre-cancelled, got %d", sp.calls)
	}
}

func TestDispatchToolSurfacesErrorWithoutAborting(t *testing.T) {
	sp := &stubProvider{name: "anthropic"}
	l, _ := newTestLoop(t, sp)

	result := l.dispatchTool(context.Background(), models.ToolCall{ID: "t1", ToolName: "missing", Parameters: "{}"}, 3000, "conv-1")
	var decoded map[string]string
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		t.Fatalf("expected a JSON error payload, got %q: %v", result, err)
	}
	if decoded["error"] == "" {
		t.Fatalf("expected a non-empty error message, got %+v", decoded)
	}
}
