// Package main provides the MCP server entry point for category-routed retrieval.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/classifier"
	"github.com/bull/category-rag/internal/config"
	"github.com/bull/category-rag/internal/embedding"
	mcpserver "github.com/bull/category-rag/internal/mcp"
	"github.com/bull/category-rag/internal/retrieval"
	"github.com/bull/category-rag/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (default: $RAG_CONFIG)")
	flag.Parse()

	// Create context that cancels on SIGTERM/SIGINT
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	// stdout carries the MCP stdio transport, so logs go to stderr.
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		logger.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}

	llm, err := embedding.NewClient(cfg.Classifier.APIKey, cfg.Classifier.BaseURL)
	if err != nil {
		logger.Error("Failed to create classifier client", "error", err)
		os.Exit(1)
	}
	zeroShot := classifier.NewClassifier(llm.Client(), cfg.Classifier.Model)

	store, err := storage.Open(cfg.VectorStore, embedder.Dimension())
	if err != nil {
		logger.Error("Failed to connect to vector store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("Failed to ensure schema", "error", err)
		os.Exit(1)
	}

	loader := retrieval.DirectoryLoader(cfg.DataDir, catalog.Options{
		TopK:          cfg.Chunking.KeywordTopK,
		StopwordsFile: cfg.Chunking.StopwordsFile,
		Logger:        logger,
	})
	svc, err := retrieval.NewService(embedder, zeroShot, store, loader,
		retrieval.PolicyFromConfig(cfg.Selection), logger.With("component", "retrieval"))
	if err != nil {
		logger.Error("Failed to create retrieval service", "error", err)
		os.Exit(1)
	}

	go initialize(ctx, svc, logger)

	server := mcpserver.NewServer(&mcpserver.Config{
		Retriever: svc,
		Store:     store,
		Logger:    logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store, svc))
	mux.Handle("/mcp", server.HTTPHandler(true))
	mux.HandleFunc("/", mcpserver.NewLandingHandler(svc))

	httpServer := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Server.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		httpServer.Shutdown(shutdownCtx)
	}()

	if cfg.Server.ServerMode {
		logger.Info("Starting HTTP server", "addr", httpServer.Addr, "mcp", "/mcp", "health", "/health")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Stdio mode still serves /health in the background for local testing.
	go func() {
		logger.Info("Starting health server", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Health server error", "error", err)
		}
	}()

	logger.Info("Starting category RAG MCP server (stdio mode)")
	if err := server.Run(ctx); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}

// initialize retries service initialization until it succeeds or ctx ends.
// Tools answer not-ready in the meantime.
func initialize(ctx context.Context, svc *retrieval.Service, logger *slog.Logger) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	err := backoff.RetryNotify(func() error {
		err := svc.Initialize(ctx)
		if errors.Is(err, retrieval.ErrNoCategories) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, next time.Duration) {
		logger.Warn("Initialization failed, retrying", "error", err, "retry_in", next)
	})
	if err != nil {
		logger.Error("Retrieval service not initialized", "error", err)
	}
}
