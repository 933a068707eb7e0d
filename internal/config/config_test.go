package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "spider.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "server:\n  host: 127.0.0.1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPPort != 8420 {
		t.Fatalf("expected default http_port 8420, got %d", cfg.Server.HTTPPort)
	}
	if cfg.LLM.DefaultProvider != "anthropic" {
		t.Fatalf("expected default provider anthropic, got %q", cfg.LLM.DefaultProvider)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("SPIDER_TEST_HOST", "10.0.0.5")
	path := writeTempConfig(t, "server:\n  host: ${SPIDER_TEST_HOST}\n  http_port: 9000\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Host != "10.0.0.5" {
		t.Fatalf("expected expanded host, got %q", cfg.Server.Host)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "server:\n  bogus_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unknown field")
	}
}

func TestLoadAccumulatesValidationIssues(t *testing.T) {
	path := writeTempConfig(t, "server:\n  http_port: -1\nllm:\n  max_tokens: 0\n  temperature: 5\n")
	_, err := Load(path)
	if err == nil {
		t.Fatalf("expected a validation error")
	}
	verr, ok := err.(*ConfigValidationError)
	if !ok {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(verr.Issues) != 3 {
		t.Fatalf("expected 3 accumulated issues, got %d: %v", len(verr.Issues), verr.Issues)
	}
}

func TestLoadAcceptsWSTransportMCPServer(t *testing.T) {
	path := writeTempConfig(t, "mcp:\n  servers:\n    - id: search\n      transport: ws\n      url: wss://mcp.example.com/socket\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("Load: expected a ws-transport server to validate, got %v", err)
	}
}

func TestLoadRejectsWSTransportMCPServerWithoutURL(t *testing.T) {
	path := writeTempConfig(t, "mcp:\n  servers:\n    - id: search\n      transport: ws\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for a ws-transport server missing a url")
	}
}

func TestLoadRejectsUnsupportedMCPTransport(t *testing.T) {
	path := writeTempConfig(t, "mcp:\n  servers:\n    - id: search\n      transport: carrier-pigeon\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unsupported transport")
	}
}
