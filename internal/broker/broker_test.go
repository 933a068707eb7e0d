package broker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/haasonsaas/spider/internal/hypergrid"
)

func TestInvokeDispatchesHypergridWithoutMcp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":["weather-provider"]}`))
	}))
	defer srv.Close()

	hg := hypergrid.NewClient()
	hg.Register("hg1", hypergrid.Config{URL: srv.URL, Token: "tok", ClientID: "cid"})

	b := New(nil, hg, nil)

	args, _ := json.Marshal(map[string]any{"query": "weather"})
	out, err := b.Invoke(context.Background(), "hg1", 1, "hypergrid_search", args, "conv-1")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	var wrapped struct {
		Content []struct{ Text string } `json:"content"`
	}
	if err := json.Unmarshal(out, &wrapped); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(wrapped.Content) != 1 {
		t.Fatalf("expected wrapped content, got %+v", wrapped)
	}
}

func TestInvokeUnknownHypergridTool(t *testing.T) {
	hg := hypergrid.NewClient()
	hg.Register("hg1", hypergrid.Config{URL: "http://example.invalid"})
	b := New(nil, hg, nil)

	_, err := b.Invoke(context.Background(), "hg1", 1, "not_a_real_tool", nil, "conv-1")
	if err == nil {
		t.Fatalf("expected error for unknown hypergrid tool")
	}
}

func TestDecodeHypergridArgs(t *testing.T) {
	raw := []any{
		[]any{"city", "nyc"},
		[]any{"units", "metric"},
	}
	got := decodeHypergridArgs(raw)
	want := [][2]string{{"city", "nyc"}, {"units", "metric"}}
	if len(got) != len(want) {
		t.Fatalf("expected %d pairs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pair %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
