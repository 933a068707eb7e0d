// Package config loads and validates Spider's process configuration: one
// YAML file, environment-variable expanded, decoded with unknown fields
// rejected, defaulted, then validated into a single accumulated error.
package config

import (
	"fmt"
	"time"

	"github.com/haasonsaas/spider/internal/mcp"
)

// Config is Spider's top-level process configuration.
type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Auth      AuthConfig       `yaml:"auth"`
	LLM       LLMConfig        `yaml:"llm"`
	MCP       mcp.Config       `yaml:"mcp"`
	Hypergrid HypergridConfig  `yaml:"hypergrid"`
	Session   SessionConfig    `yaml:"session"`
	Storage   StorageConfig    `yaml:"storage"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// ServerConfig is the HTTP/WS listener configuration.
type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

// AuthConfig configures the optional JWT session layer sitting on top of
// Spider keys and OAuth tokens.
type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenExpiry time.Duration `yaml:"token_expiry"`
}

// LLMConfig carries the chat defaults RuntimeConfig is seeded from at boot.
type LLMConfig struct {
	DefaultProvider string  `yaml:"default_provider"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float32 `yaml:"temperature"`
}

// HypergridServerConfig is one Hypergrid-backed registry endpoint, keyed by
// the McpServer id the agentic loop and Tool Broker address it by.
type HypergridServerConfig struct {
	URL      string `yaml:"url"`
	Token    string `yaml:"token"`
	ClientID string `yaml:"client_id"`
}

// HypergridConfig lists every configured Hypergrid registry.
type HypergridConfig struct {
	Servers map[string]HypergridServerConfig `yaml:"servers"`
}

// SessionConfig configures the first-run trial credential dispenser.
type SessionConfig struct {
	TrialKeyURL string        `yaml:"trial_key_url"`
	TrialKeyTTL time.Duration `yaml:"trial_key_ttl"`
}

// StorageConfig points at the on-disk drives for key/server snapshots and
// conversation transcripts.
type StorageConfig struct {
	StateFile        string `yaml:"state_file"`
	ConversationsDir string `yaml:"conversations_dir"`
}

// LoggingConfig selects the slog handler and verbosity.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", HTTPPort: 8420},
		LLM: LLMConfig{
			DefaultProvider: "anthropic",
			MaxTokens:       4096,
			Temperature:     0.7,
		},
		MCP: mcp.Config{Enabled: true},
		Session: SessionConfig{
			TrialKeyTTL: 24 * time.Hour,
		},
		Storage: StorageConfig{
			StateFile:        "spider-state.json",
			ConversationsDir: "conversations",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// ConfigValidationError accumulates every validation failure found in one
// Load call, rather than stopping at the first.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	msg := "invalid configuration:"
	for _, issue := range e.Issues {
		msg += "\n  - " + issue
	}
	return msg
}

func (c *Config) validate() error {
	var issues []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		issues = append(issues, fmt.Sprintf("server.http_port must be between 1 and 65535, got %d", c.Server.HTTPPort))
	}
	if c.LLM.MaxTokens <= 0 {
		issues = append(issues, "llm.max_tokens must be positive")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		issues = append(issues, "llm.temperature must be between 0 and 2")
	}
	for id, server := range c.Hypergrid.Servers {
		if server.URL == "" {
			issues = append(issues, fmt.Sprintf("hypergrid.servers.%s.url is required", id))
		}
	}
	for _, server := range c.MCP.Servers {
		switch server.Transport {
		case mcp.TransportStdio:
			if server.Command == "" {
				issues = append(issues, fmt.Sprintf("mcp server %q: stdio transport requires command", server.ID))
			}
		case mcp.TransportHTTP:
			if server.URL == "" {
				issues = append(issues, fmt.Sprintf("mcp server %q: http transport requires url", server.ID))
			}
		case mcp.TransportWS:
			if err := server.Validate(); err != nil {
				issues = append(issues, fmt.Sprintf("mcp server %q: %v", server.ID, err))
			}
		default:
			issues = append(issues, fmt.Sprintf("mcp server %q: unsupported transport %q", server.ID, server.Transport))
		}
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}
