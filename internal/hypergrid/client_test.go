package hypergrid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthorizeAcceptsOkAndNotFound(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNotFound} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Client-ID") != "client-1" || r.Header.Get("X-Token") != "tok" {
				t.Errorf("missing expected auth headers")
			}
			w.WriteHeader(status)
		}))
		defer srv.Close()

		c := NewClient()
		cfg := Config{URL: srv.URL, Token: "tok", ClientID: "client-1"}
		if err := c.Authorize(context.Background(), cfg); err != nil {
			t.Fatalf("status %d: expected Authorize to succeed, got %v", status, err)
		}
	}
}

func TestAuthorizeRejectsOtherStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient()
	cfg := Config{URL: srv.URL, Token: "tok", ClientID: "client-1"}
	if err := c.Authorize(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for status 500")
	}
}

func TestSearchWrapsResponseAsContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		req, _ := body["request"].(map[string]any)
		if req["SearchRegistry"] != "weather" {
			t.Errorf("expected SearchRegistry=weather, got %v", req)
		}
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient()
	cfg := Config{URL: srv.URL, Token: "tok", ClientID: "client-1"}
	out, err := c.Search(context.Background(), cfg, "weather")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	var wrapped struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(out, &wrapped); err != nil {
		t.Fatalf("unmarshal wrapped result: %v", err)
	}
	if len(wrapped.Content) != 1 || wrapped.Content[0].Type != "text" {
		t.Fatalf("expected one text content block, got %+v", wrapped.Content)
	}
	if wrapped.Content[0].Text != `{"results":[]}` {
		t.Fatalf("expected raw body preserved, got %q", wrapped.Content[0].Text)
	}
}

func TestCallRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad provider id"))
	}))
	defer srv.Close()

	c := NewClient()
	cfg := Config{URL: srv.URL, Token: "tok", ClientID: "client-1"}
	_, err := c.Call(context.Background(), cfg, "p1", "weather", [][2]string{{"city", "nyc"}})
	if err == nil {
		t.Fatalf("expected error for status 400")
	}
}

func TestRegisterAndConfigFor(t *testing.T) {
	c := NewClient()
	if _, ok := c.ConfigFor("missing"); ok {
		t.Fatalf("expected unregistered server to report not-found")
	}
	c.Register("srv1", Config{URL: "http://example.invalid", Token: "t", ClientID: "c"})
	cfg, ok := c.ConfigFor("srv1")
	if !ok || cfg.ClientID != "c" {
		t.Fatalf("expected registered config to be returned, got %+v ok=%v", cfg, ok)
	}
	c.Unregister("srv1")
	if _, ok := c.ConfigFor("srv1"); ok {
		t.Fatalf("expected config to be gone after Unregister")
	}
}
