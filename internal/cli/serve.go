package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/WxClaw/WxClaw/internal/agent"
	"github.com/WxClaw/WxClaw/internal/bus"
	"github.com/WxClaw/WxClaw/internal/channels"
	"github.com/WxClaw/WxClaw/internal/config"
	"github.com/WxClaw/WxClaw/internal/history"
	"github.com/WxClaw/WxClaw/internal/provider"
	"github.com/WxClaw/WxClaw/internal/relay"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the callback relay server",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🌐 WxClaw Serve")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// 2. History store (also used for callback deduplication)
	configPath, err := config.ConfigPath()
	if err != nil {
		fmt.Printf("Home directory error: %v\n", err)
		os.Exit(1)
	}
	dataDir := filepath.Dir(configPath)
	if err := config.EnsureDir(dataDir); err != nil {
		fmt.Printf("Data directory error: %v\n", err)
		os.Exit(1)
	}
	store, err := history.NewStore(filepath.Join(dataDir, "history.db"))
	if err != nil {
		fmt.Printf("Failed to init history store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Agent.Workspace != "" {
		if err := config.EnsureDir(cfg.Agent.Workspace); err != nil {
			fmt.Printf("Workspace error: %v\n", err)
			os.Exit(1)
		}
	}

	// 3. Bus
	msgBus := bus.NewMessageBus()

	// 4. Provider
	if cfg.Provider.APIKey == "" {
		fmt.Println("⚠️ No LLM API key configured; replies will fail until one is set")
	}
	prov := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model)

	// 5. Agent loop
	loop := agent.NewLoop(agent.LoopOptions{
		Bus:           msgBus,
		Provider:      prov,
		History:       store,
		PersonaPath:   cfg.Agent.PersonaPath,
		Workspace:     cfg.Agent.Workspace,
		Model:         cfg.Provider.Model,
		MaxTokens:     cfg.Provider.MaxTokens,
		Temperature:   cfg.Provider.Temperature,
		MaxIterations: cfg.Agent.MaxToolIterations,
		HistoryWindow: cfg.Relay.HistoryWindow,
	})

	// 6. Batching pipeline
	table := relay.NewTable(cfg.Relay.MaxSessions)
	dispatcher := relay.NewBusDispatcher(msgBus, "wecom")
	batcher := relay.NewBatcher(
		table,
		dispatcher,
		time.Duration(cfg.Relay.BatchIdleSeconds)*time.Second,
		time.Duration(cfg.Relay.SessionIdleSeconds)*time.Second,
	)

	// 7. WeCom channel
	wecomChannel, err := channels.NewWeComChannel(cfg.WeCom, msgBus, batcher, store)
	if err != nil {
		fmt.Printf("Channel error: %v\n", err)
		os.Exit(1)
	}

	// 8. Start everything
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := wecomChannel.Start(ctx); err != nil {
		fmt.Printf("Failed to start channel: %v\n", err)
		os.Exit(1)
	}
	go msgBus.DispatchOutbound(ctx)
	go batcher.Run(ctx)
	go func() {
		if err := loop.Run(ctx); err != nil {
			slog.Error("Agent loop stopped", "error", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.CallbackPath, wecomChannel.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		slog.Info("Callback server listening", "addr", server.Addr, "path", cfg.Server.CallbackPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Callback server error", "error", err)
			cancel()
		}
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown error", "error", err)
	}
	_ = wecomChannel.Stop()
	cancel()
	fmt.Println("Stopped.")
}
