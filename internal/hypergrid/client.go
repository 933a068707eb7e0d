// Package hypergrid talks to the Hypergrid provider registry, a bespoke
// HTTP protocol that sits alongside MCP as a second tool-execution surface.
package hypergrid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// AuthorizeTimeout/CallTimeout match spec's Hypergrid connection-test and
// call budgets, grounded on lib.rs's test_hypergrid_connection (30s) and
// call_hypergrid_api (60s) timeouts.
const (
	AuthorizeTimeout = 30 * time.Second
	CallTimeout      = 60 * time.Second
)

// Config holds one server's Hypergrid connection credentials.
type Config struct {
	URL      string
	Token    string
	ClientID string
}

// Client issues Hypergrid registry requests over plain HTTP.
type Client struct {
	httpClient *http.Client

	mu      sync.RWMutex
	servers map[string]Config
}

// NewClient creates a Hypergrid client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
		servers:    make(map[string]Config),
	}
}

// Register records serverID's connection config so the broker can resolve
// it by server ID without threading credentials through every call site.
func (c *Client) Register(serverID string, cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.servers[serverID] = cfg
}

// Unregister drops serverID's config.
func (c *Client) Unregister(serverID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.servers, serverID)
}

// ConfigFor reports whether serverID is a registered Hypergrid server.
func (c *Client) ConfigFor(serverID string) (Config, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cfg, ok := c.servers[serverID]
	return cfg, ok
}

// Authorize validates cfg's credentials with a probe search request.
// Status 200 or 404 both count as a validated connection.
func (c *Client) Authorize(ctx context.Context, cfg Config) error {
	_, err := c.doRequest(ctx, cfg, AuthorizeTimeout, map[string]any{
		"request": map[string]any{"SearchRegistry": "test"},
	}, true)
	return err
}

// Search queries the Hypergrid provider registry.
func (c *Client) Search(ctx context.Context, cfg Config, query string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, cfg, CallTimeout, map[string]any{
		"request": map[string]any{"SearchRegistry": query},
	}, false)
	if err != nil {
		return nil, err
	}
	return wrapAsContent(body), nil
}

// Call invokes a Hypergrid provider by ID/name with positional arguments.
func (c *Client) Call(ctx context.Context, cfg Config, providerID, providerName string, args [][2]string) (json.RawMessage, error) {
	body, err := c.doRequest(ctx, cfg, CallTimeout, map[string]any{
		"request": map[string]any{
			"CallProvider": map[string]any{
				"provider_id":   providerID,
				"provider_name": providerName,
				"arguments":     args,
			},
		},
	}, false)
	if err != nil {
		return nil, err
	}
	return wrapAsContent(body), nil
}

// doRequest POSTs payload to cfg.URL with the Hypergrid auth headers.
// When allow404 is true, a 404 response is treated as a successful probe.
func (c *Client) doRequest(ctx context.Context, cfg Config, timeout time.Duration, payload any, allow404 bool) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("hypergrid: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("hypergrid: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-ID", cfg.ClientID)
	req.Header.Set("X-Token", cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hypergrid: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("hypergrid: read response: %w", err)
	}

	if allow404 && (resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotFound) {
		return body, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("hypergrid: status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// wrapAsContent wraps a raw Hypergrid response body as the MCP-shaped tool
// result the agentic loop expects from every tool call.
func wrapAsContent(body []byte) json.RawMessage {
	wrapped := map[string]any{
		"content": []map[string]string{
			{"type": "text", "text": string(body)},
		},
	}
	out, _ := json.Marshal(wrapped)
	return out
}
