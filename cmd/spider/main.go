// Package main provides the CLI entry point for the Spider MCP gateway.
//
// Spider connects LLM clients to MCP tool servers and the Hypergrid
// provider registry through a single HTTP/WebSocket gateway, mediating
// every tool call through one agentic chat loop.
//
// # Basic Usage
//
// Start the server:
//
//	spider serve --config spider.yaml
//
// # Environment Variables
//
//   - SPIDER_CONFIG: Path to configuration file (default: spider.yaml)
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
//
// Example build command:
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "spider",
		Short: "Spider - MCP client and agentic chat broker",
		Long: `Spider fronts MCP tool servers and the Hypergrid provider registry
behind a single gateway, running the agentic chat loop that alternates
LLM inference with ordered tool dispatch.

Supported LLM providers: Anthropic (Claude); OpenAI is registered but
returns a not-implemented error
Tool surfaces: MCP (stdio/http/ws), Hypergrid registry`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(buildServeCmd())

	return rootCmd
}
