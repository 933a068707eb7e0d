package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/spider/internal/agentloop"
	"github.com/haasonsaas/spider/internal/auth"
	"github.com/haasonsaas/spider/internal/broker"
	"github.com/haasonsaas/spider/internal/config"
	"github.com/haasonsaas/spider/internal/convstore"
	"github.com/haasonsaas/spider/internal/gateway"
	"github.com/haasonsaas/spider/internal/hypergrid"
	"github.com/haasonsaas/spider/internal/keystore"
	"github.com/haasonsaas/spider/internal/mcp"
	"github.com/haasonsaas/spider/internal/oauthproxy"
	"github.com/haasonsaas/spider/internal/state"
)

const defaultConfigPath = "spider.yaml"

func buildServeCmd() *cobra.Command {
	var configPath string
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Spider gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if debug {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
			if configPath == "" {
				configPath = os.Getenv("SPIDER_CONFIG")
			}
			if configPath == "" {
				configPath = defaultConfigPath
			}
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file (default: spider.yaml, or $SPIDER_CONFIG)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug-level logging")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	keyPersist := func(snap keystore.Snapshot) error {
		return writeStateFile(cfg.Storage.StateFile, snap)
	}
	keys := keystore.New(keyPersist)
	if snap, err := readStateFile(cfg.Storage.StateFile); err == nil {
		keys.Restore(snap)
	}
	keys.EnsureAdminGUIKey()

	authSvc := auth.NewService(auth.Config{
		JWTSecret:   cfg.Auth.JWTSecret,
		TokenExpiry: cfg.Auth.TokenExpiry,
	}, keys)

	mcpManager := mcp.NewManager(&cfg.MCP, slog.Default())
	if err := mcpManager.Start(ctx); err != nil {
		return fmt.Errorf("start mcp manager: %w", err)
	}
	defer mcpManager.Stop()

	hgClient := hypergrid.NewClient()
	for id, server := range cfg.Hypergrid.Servers {
		hgClient.Register(id, hypergrid.Config{
			URL:      server.URL,
			Token:    server.Token,
			ClientID: server.ClientID,
		})
	}

	tb := broker.New(mcpManager, hgClient, slog.Default())
	conv := convstore.New(cfg.Storage.ConversationsDir, slog.Default())
	oauth := oauthproxy.New()

	runtimeCfg := state.RuntimeConfig{
		DefaultLLMProvider: cfg.LLM.DefaultProvider,
		MaxTokens:          cfg.LLM.MaxTokens,
		Temperature:        cfg.LLM.Temperature,
	}
	st := state.New(runtimeCfg)

	loop := agentloop.New(keys, authSvc, mcpManager, tb, conv, st, slog.Default())

	srv := gateway.New(gateway.Config{
		Host:     cfg.Server.Host,
		HTTPPort: cfg.Server.HTTPPort,
	}, gateway.Deps{
		Keys:   keys,
		Auth:   authSvc,
		MCP:    mcpManager,
		Conv:   conv,
		State:  st,
		Loop:   loop,
		OAuth:  oauth,
		Logger: slog.Default(),
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}

	shutdownCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-shutdownCtx.Done()

	slog.Info("shutting down")
	return srv.Stop(context.Background())
}

func readStateFile(path string) (keystore.Snapshot, error) {
	var snap keystore.Snapshot
	data, err := os.ReadFile(path)
	if err != nil {
		return snap, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func writeStateFile(path string, snap keystore.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
