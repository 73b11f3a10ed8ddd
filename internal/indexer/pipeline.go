// Package indexer walks a category-structured corpus, turns every supported
// file into embedded chunks and loads them into the vector store.
package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/bull/category-rag/internal/chunker"
	"github.com/bull/category-rag/internal/embedding"
	"github.com/bull/category-rag/internal/extract"
	"github.com/bull/category-rag/internal/storage"
)

// Writer is the write side of a vector store used by ingestion.
type Writer interface {
	Reset(ctx context.Context) error
	Insert(ctx context.Context, rows []storage.Row) error
	Reindex(ctx context.Context) error
}

// FileStatus is the outcome of processing one file.
type FileStatus string

const (
	StatusOK            FileStatus = "ok"
	StatusUnreadable    FileStatus = "unreadable"
	StatusNoChunks      FileStatus = "no_chunks"
	StatusEmbedFailed   FileStatus = "embed_failed"
	StatusCountMismatch FileStatus = "count_mismatch"
)

// FileResult records what happened to one supported file.
type FileResult struct {
	Path     string
	Category string
	Status   FileStatus
	Chunks   int
	Reason   string
}

// Failed reports whether the file contributed no rows.
func (r FileResult) Failed() bool {
	return r.Status != StatusOK
}

// ProcessResult contains the rows produced from a directory and per-file outcomes.
type ProcessResult struct {
	Rows      []storage.Row
	Files     []FileResult
	Processed int
	Failed    int
	Duration  time.Duration
}

// FailedFiles returns the results of files that produced no rows.
func (r *ProcessResult) FailedFiles() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Failed() {
			out = append(out, f)
		}
	}
	return out
}

// LoadResult describes a bulk load. A failed reindex leaves the inserted
// rows in place and queryable, only slower.
type LoadResult struct {
	Inserted   int
	ReindexErr error
}

// RunResult combines the processing and loading outcomes of Run.
type RunResult struct {
	Process *ProcessResult
	Load    *LoadResult
}

// Pipeline orchestrates extraction, chunking, embedding and loading.
type Pipeline struct {
	embedder     embedding.Provider
	store        Writer
	pool         *ants.Pool
	chunkSize    int
	chunkOverlap int
	logger       *slog.Logger
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(embedder embedding.Provider, store Writer, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	size, overlap := defaultChunking()
	p := &Pipeline{
		embedder:     embedder,
		store:        store,
		chunkSize:    size,
		chunkOverlap: overlap,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		pool, err := ants.NewPool(defaultPoolSize())
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}

	return p, nil
}

// Release frees the worker pool.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

type fileJob struct {
	path     string
	category string
}

type extracted struct {
	chunks []string
	err    error
}

// ProcessDirectory walks root and returns one row per chunk of every
// supported file. Each top-level subdirectory names the category of every
// file beneath it; files directly in root have no category and are skipped.
//
// Files are extracted and chunked concurrently, then embedded one file at a
// time in walk order, so the output order is deterministic. Per-file
// failures are recorded in the result and never abort the walk.
func (p *Pipeline) ProcessDirectory(ctx context.Context, root string) (*ProcessResult, error) {
	start := time.Now()

	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoot, root)
	}

	jobs, err := p.collect(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	p.logger.Info("Found files", "root", root, "count", len(jobs))

	prepared := p.extractAll(jobs)

	result := &ProcessResult{
		Rows:  []storage.Row{},
		Files: make([]FileResult, 0, len(jobs)),
	}
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fr, rows := p.embedFile(ctx, job, prepared[i])
		result.Files = append(result.Files, fr)
		if fr.Failed() {
			result.Failed++
			p.logger.Warn("Failed to process file", "path", job.path, "status", fr.Status, "error", fr.Reason)
			continue
		}
		result.Processed++
		result.Rows = append(result.Rows, rows...)
		p.logger.Debug("Processed file", "path", job.path, "chunks", fr.Chunks)
	}

	result.Duration = time.Since(start)
	p.logger.Info("Processing complete",
		"processed", result.Processed,
		"failed", result.Failed,
		"rows", len(result.Rows),
		"duration", result.Duration,
	)
	return result, nil
}

// collect lists supported files below the top-level category directories in
// lexical order. Hidden files and directories are ignored.
func (p *Pipeline) collect(root string) ([]fileJob, error) {
	var jobs []fileJob
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			p.logger.Warn("Cannot access path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 2 || !extract.Supported(path) {
			return nil
		}

		jobs = append(jobs, fileJob{path: path, category: parts[0]})
		return nil
	})
	return jobs, err
}

// extractAll reads and chunks every job on the worker pool.
func (p *Pipeline) extractAll(jobs []fileJob) []extracted {
	out := make([]extracted, len(jobs))

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			out[i] = p.extractFile(job.path)
		}
		if err := p.pool.Submit(task); err != nil {
			p.logger.Warn("Worker pool rejected task, running inline", "path", job.path, "error", err)
			task()
		}
	}
	wg.Wait()
	return out
}

func (p *Pipeline) extractFile(path string) extracted {
	text, err := extract.ReadFile(path)
	if err != nil {
		return extracted{err: err}
	}
	return extracted{chunks: chunker.SplitTextChunks(text, p.chunkSize, p.chunkOverlap)}
}

// embedFile embeds all chunks of one file in a single call and tags them
// with the file's category.
func (p *Pipeline) embedFile(ctx context.Context, job fileJob, prep extracted) (FileResult, []storage.Row) {
	fr := FileResult{Path: job.path, Category: job.category}

	if prep.err != nil {
		fr.Status, fr.Reason = StatusUnreadable, prep.err.Error()
		return fr, nil
	}
	if len(prep.chunks) == 0 {
		fr.Status, fr.Reason = StatusNoChunks, "no chunk reached the minimum length"
		return fr, nil
	}

	vecs, err := p.embedder.Embed(ctx, prep.chunks)
	if err != nil {
		fr.Status, fr.Reason = StatusEmbedFailed, err.Error()
		return fr, nil
	}
	if len(vecs) != len(prep.chunks) {
		fr.Status = StatusCountMismatch
		fr.Reason = fmt.Sprintf("got %d embeddings for %d chunks", len(vecs), len(prep.chunks))
		return fr, nil
	}

	rows := make([]storage.Row, len(prep.chunks))
	for i, chunk := range prep.chunks {
		rows[i] = storage.Row{Content: chunk, Embedding: vecs[i], Category: job.category}
	}
	fr.Status, fr.Chunks = StatusOK, len(rows)
	return fr, rows
}

// Load inserts rows in one bulk operation, then rebuilds the ANN index.
// An insert failure is returned; a reindex failure is only reported in the
// result.
func (p *Pipeline) Load(ctx context.Context, rows []storage.Row) (*LoadResult, error) {
	if err := p.store.Insert(ctx, rows); err != nil {
		return nil, fmt.Errorf("insert rows: %w", err)
	}
	result := &LoadResult{Inserted: len(rows)}
	p.logger.Info("Inserted rows", "count", len(rows))

	if err := p.store.Reindex(ctx); err != nil {
		p.logger.Error("Index rebuild failed, queries will be slower until the next rebuild", "error", err)
		result.ReindexErr = err
		return result, nil
	}
	p.logger.Info("Index rebuilt")
	return result, nil
}

// Run performs a full ingestion of root: reset, process, insert, reindex.
// Reset and insert failures are returned; a directory that yields no rows
// leaves the store empty and skips the load.
func (p *Pipeline) Run(ctx context.Context, root string) (*RunResult, error) {
	if err := p.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset store: %w", err)
	}
	p.logger.Info("Store reset")

	processed, err := p.ProcessDirectory(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("process directory: %w", err)
	}

	result := &RunResult{Process: processed}
	if len(processed.Rows) == 0 {
		p.logger.Warn("No rows produced, nothing to load", "root", root)
		return result, nil
	}

	loaded, err := p.Load(ctx, processed.Rows)
	if err != nil {
		return result, err
	}
	result.Load = loaded
	return result, nil
}
