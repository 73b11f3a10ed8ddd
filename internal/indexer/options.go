package indexer

import (
	"log/slog"
	"runtime"

	"github.com/panjf2000/ants/v2"

	"github.com/bull/category-rag/internal/chunker"
)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the extraction worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithChunking sets the chunk window and overlap in words. A non-positive
// size keeps the default; a negative overlap behaves as zero.
func WithChunking(size, overlap int) Option {
	return func(p *Pipeline) error {
		if size > 0 {
			p.chunkSize = size
		}
		p.chunkOverlap = overlap
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

func defaultPoolSize() int {
	return max(1, runtime.NumCPU()/2)
}

func defaultChunking() (int, int) {
	return chunker.DefaultChunkSize, chunker.DefaultChunkOverlap
}
