package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/credscout/internal/action"
	"github.com/gyaneshwarpardhi/credscout/internal/action/crm"
	"github.com/gyaneshwarpardhi/credscout/internal/action/notify"
	"github.com/gyaneshwarpardhi/credscout/internal/action/stream"
	"github.com/gyaneshwarpardhi/credscout/internal/analyst"
	"github.com/gyaneshwarpardhi/credscout/internal/api"
	"github.com/gyaneshwarpardhi/credscout/internal/config"
	"github.com/gyaneshwarpardhi/credscout/internal/engine"
	"github.com/gyaneshwarpardhi/credscout/internal/scout"
	"github.com/gyaneshwarpardhi/credscout/internal/store"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides server.addr)")
	cfgPath := flag.String("config", "configs/agent.yaml", "Path to agent YAML config")
	envPath := flag.String("env", ".env", "Optional dotenv file with secrets")
	debug := flag.Bool("debug", false, "Enable debug logging (mirrors the agent log)")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	loader, err := config.NewLoader(*cfgPath, *envPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	cfg := loader.Config()
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded", "path", *cfgPath, "integrations", cfg.Integrations())

	// ── Process-scoped state ─────────────────────────────────────────────────
	st := store.New()
	// The stream publisher owns a long-lived broker connection and outlives pipeline swaps.
	publisher := stream.New(stream.Config{Brokers: cfg.Stream.Brokers, Topic: cfg.Stream.Topic}, nil)
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("stream publisher close failed", "err", err)
		}
	}()

	// ── Engine ────────────────────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng := engine.New(ctx, st, buildPipeline(cfg, st, publisher), engineOptions(cfg))

	// ── Hot-reload watcher ────────────────────────────────────────────────────
	// Reload only fires callbacks for configs that pass Validate.
	loader.OnChange(func(newCfg *config.Config) {
		if publisher.Reconfigure(stream.Config{Brokers: newCfg.Stream.Brokers, Topic: newCfg.Stream.Topic}) {
			slog.Info("stream publisher reconfigured", "topic", newCfg.Stream.Topic)
		}
		eng.SwapPipeline(buildPipeline(newCfg, st, publisher))
		slog.Info("pipeline hot-reloaded", "integrations", newCfg.Integrations())
	})
	stopWatch, err := loader.Watch()
	if err != nil {
		slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
	} else {
		defer stopWatch()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	listen := cfg.Server.Addr
	if *addr != "" {
		listen = *addr
	}
	srv := &http.Server{
		Addr:        listen,
		Handler:     api.New(eng, loader),
		ReadTimeout: 10 * time.Second,
		// Sync triggers hold the connection for a whole cycle.
		WriteTimeout: time.Duration(cfg.Cycle.TimeoutMs)*time.Millisecond + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", listen, "mode", cfg.Cycle.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop the cycle worker
	eng.Shutdown()
	slog.Info("goodbye")
}

// buildPipeline wires every stage from cfg. publisher is shared across rebuilds.
func buildPipeline(cfg *config.Config, st *store.Store, publisher *stream.Publisher) *engine.Pipeline {
	var source scout.DatasetSource
	if cfg.Dataset.Token != "" || cfg.Dataset.DatasetID != "" {
		source = scout.NewDatasetClient(cfg.Dataset.BaseURL, cfg.Dataset.Token, cfg.Dataset.ActorID)
	}
	sc := scout.New(scout.Config{
		DatasetID:     cfg.Dataset.DatasetID,
		ScrapeEnabled: cfg.Dataset.ScrapeEnabled && cfg.Dataset.Token != "",
	}, source, st)

	an := analyst.New(analyst.NewOpenAIBackend(analyst.OpenAIConfig{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}))

	reg := action.NewRegistry(
		crm.New(crm.Config{
			BaseURL:     cfg.CRM.BaseURL,
			WorkspaceID: cfg.CRM.WorkspaceID,
			Timeout:     time.Duration(cfg.CRM.TimeoutMs) * time.Millisecond,
		}),
		notify.New(notify.Config{
			BaseURL:        cfg.Notify.BaseURL,
			AccessToken:    cfg.Notify.AccessToken,
			RecipientEmail: cfg.Notify.RecipientEmail,
			DashboardURL:   cfg.Notify.DashboardURL,
			Timeout:        time.Duration(cfg.Notify.TimeoutMs) * time.Millisecond,
		}),
		publisher,
	)

	return &engine.Pipeline{
		Scout:   sc,
		Analyst: an,
		Actions: action.NewExecutor(reg, st),
	}
}

func engineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		AnalyzingDelay: time.Duration(cfg.Cycle.AnalyzingDelayMs) * time.Millisecond,
		ActingDelay:    time.Duration(cfg.Cycle.ActingDelayMs) * time.Millisecond,
		QueueDepth:     cfg.Cycle.QueueDepth,
		SyncTimeout:    time.Duration(cfg.Cycle.TimeoutMs) * time.Millisecond,
	}
}
