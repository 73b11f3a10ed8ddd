// Package main provides the ingest CLI that builds the category-tagged vector index.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/config"
	"github.com/bull/category-rag/internal/embedding"
	ghclient "github.com/bull/category-rag/internal/github"
	"github.com/bull/category-rag/internal/indexer"
	"github.com/bull/category-rag/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Category-tagged corpus indexing tool",
	Long:  "CLI tool for loading a categorized document corpus into the vector store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Re-index the whole corpus from DATA_DIR",
	Long: `Clears the existing index and rebuilds it from the corpus directory.

This command:
1. Connects to the vector store and ensures the schema exists
2. Clears all stored chunks
3. Extracts, chunks and embeds every supported file under DATA_DIR,
   tagging each chunk with its top-level directory as category
4. Bulk inserts the chunks and rebuilds the ANN index

Environment variables:
  DATA_DIR       Corpus root (default: ./data)
  VECTOR_STORE   qdrant or postgres (default: qdrant)
  OPENAI_API_KEY OpenAI API key for embeddings (required for the openai backend)`,
	RunE: runLoad,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove every stored chunk",
	RunE:  runReset,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the ANN index over the stored chunks",
	RunE:  runReindex,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored chunk counts per category",
	RunE:  runStatus,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch owner/repo[/path][@ref]",
	Short: "Mirror a categorized corpus from GitHub into DATA_DIR",
	Long: `Downloads every supported file that sits inside a category directory
of the given GitHub repository path into DATA_DIR, keeping the layout.

Environment variables:
  GITHUB_TOKEN   GitHub token for higher rate limits (optional)`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default: $RAG_CONFIG)")
	rootCmd.AddCommand(loadCmd, resetCmd, reindexCmd, statusCmd, fetchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and installs the root logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	slog.SetDefault(cfg.Log.NewLogger(os.Stderr))
	return cfg, nil
}

// openStore connects to the configured store and ensures its schema.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	fmt.Printf("Connecting to %s vector store...\n", cfg.VectorStore.Backend)
	store, err := storage.Open(cfg.VectorStore, cfg.Embedding.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to vector store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	fmt.Println("Vector store ready")
	return store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	start := time.Now()

	cfg, err := setup()
	if err != nil {
		return err
	}

	fmt.Println("Starting load...")
	fmt.Println()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := indexer.NewPipeline(embedder, store,
		indexer.WithPoolSize(cfg.Ingest.Workers),
		indexer.WithChunking(cfg.Chunking.Size, cfg.Chunking.Overlap),
		indexer.WithLogger(slog.Default()),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	fmt.Println()
	fmt.Printf("Indexing corpus from %s...\n", cfg.DataDir)
	result, err := pipeline.Run(ctx, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	proc := result.Process
	fmt.Println()
	fmt.Println("Load complete!")
	fmt.Printf("  Files: %d/%d\n", proc.Processed, proc.Processed+proc.Failed)
	fmt.Printf("  Chunks: %d\n", len(proc.Rows))
	fmt.Printf("  Duration: %s\n", proc.Duration.Round(time.Millisecond))

	if failed := proc.FailedFiles(); len(failed) > 0 {
		fmt.Println()
		fmt.Println("Failed files:")
		for _, f := range failed {
			fmt.Printf("  - %s: %s (%s)\n", f.Path, f.Status, f.Reason)
		}
	}

	if result.Load != nil && result.Load.ReindexErr != nil {
		fmt.Println()
		fmt.Printf("Warning: index rebuild failed, run 'ingest reindex' to retry: %v\n", result.Load.ReindexErr)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Second))
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	fmt.Println("Store cleared")
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	start := time.Now()
	if err := store.Reindex(ctx); err != nil {
		return fmt.Errorf("failed to rebuild index: %w", err)
	}
	fmt.Printf("Index rebuilt in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	total, err := store.Count(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	fmt.Println()
	fmt.Printf("Total chunks: %d\n", total)

	categories, err := catalog.Load(cfg.DataDir, catalog.Options{
		TopK:          cfg.Chunking.KeywordTopK,
		StopwordsFile: cfg.Chunking.StopwordsFile,
	})
	if err != nil {
		fmt.Printf("Categories unavailable: %v\n", err)
		return nil
	}

	fmt.Println("Categories:")
	for _, c := range categories {
		n, err := store.Count(ctx, c.Name)
		if err != nil {
			return fmt.Errorf("failed to count category %s: %w", c.Name, err)
		}
		fmt.Printf("  - %s: %d\n", c.Name, n)
	}
	return nil
}

func runFetch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := setup()
	if err != nil {
		return err
	}

	source, err := ghclient.ParseSource(args[0])
	if err != nil {
		return err
	}

	client, err := ghclient.NewClient(cfg.GitHubToken)
	if err != nil {
		return fmt.Errorf("failed to create GitHub client: %w", err)
	}

	fmt.Printf("Mirroring %s/%s into %s...\n", source.Owner, source.Repo, cfg.DataDir)
	fetcher := ghclient.NewFetcher(client, source, slog.Default())
	result, err := fetcher.Mirror(ctx, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Fetch complete!")
	fmt.Printf("  Files: %d\n", len(result.Files))
	fmt.Printf("  Skipped: %d\n", result.Skipped)
	fmt.Printf("  Commit: %s\n", result.CommitSHA)
	return nil
}
