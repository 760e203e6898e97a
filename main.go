package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"newsfetcher/internal/alphavantage"
	"newsfetcher/internal/config"
	"newsfetcher/internal/dispatcher"
	"newsfetcher/internal/fmp"
	"newsfetcher/internal/marketaux"
	"newsfetcher/internal/poll"
	"newsfetcher/internal/scheduler"
	"newsfetcher/internal/server"
	"newsfetcher/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	setupLogging(cfg.LogLevel)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("received interrupt signal, shutting down")
		cancel()
	}()

	// Shared process state: HTTP client, cache, rate limiter, config
	state := poll.NewState(cfg)

	// Register one polling handler per provider
	registry := dispatcher.NewRegistry()
	registry.Register(alphavantage.New(cfg))
	registry.Register(marketaux.New(cfg))
	registry.Register(fmp.New(cfg))

	// Persistence is optional: without a URI, cycle documents are logged and
	// dropped
	var writer scheduler.CycleWriter
	if cfg.Database.URI != "" {
		manager, err := store.NewManager(ctx, cfg.Database.URI)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer manager.Close(context.Background())
		writer = manager.Ops(cfg.Database.Name, "aggregation_cycles")
	} else {
		slog.Warn("MONGODB_URI not set, persistence disabled")
	}

	// Periodic aggregation cycles across all providers
	agg := scheduler.NewAggregator(registry, state)
	agg.SetDefaultParams(alphavantage.HandlerName, mustParams(map[string]any{
		"function": "alphavantage",
		"tickers":  cfg.Polling.Tickers,
	}))
	agg.SetDefaultParams(marketaux.HandlerName, mustParams(map[string]any{
		"function": "all news",
		"symbols":  cfg.Polling.Tickers,
	}))
	agg.SetDefaultParams(fmp.HandlerName, mustParams(map[string]any{
		"function": "stock news",
		"tickers":  cfg.Polling.Tickers,
	}))

	sched := scheduler.New(agg, writer, cfg.Polling.IntervalMinutes)
	sched.Start()
	defer sched.Stop()

	// Command socket: blocks until the context is canceled
	srv := server.New(cfg.Server.Addr(), dispatcher.New(registry, state))
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
	slog.Info("shutdown complete")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func mustParams(params map[string]any) json.RawMessage {
	raw, err := json.Marshal(params)
	if err != nil {
		log.Fatalf("Failed to build default parameters: %v", err)
	}
	return raw
}
