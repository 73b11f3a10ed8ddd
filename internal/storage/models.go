package storage

import (
	"context"
	"fmt"
)

// Row is a persisted chunk: a span of text, its normalized embedding and the
// category it belongs to. Rows are never updated in place.
type Row struct {
	Content   string
	Embedding []float32
	Category  string
}

// Match is a search hit. Score is cosine similarity, higher is nearer.
type Match struct {
	Content  string
	Category string
	Score    float64
}

// Store is a category-partitioned vector store.
//
// Ingestion (Reset, Insert, Reindex) is an offline batch sequence and must not
// run concurrently with query traffic against the same store. Search and
// Count may run concurrently with each other.
type Store interface {
	// EnsureSchema creates the backing table or collection if missing.
	EnsureSchema(ctx context.Context) error

	// Reset removes every row. The ANN index must be rebuilt afterwards.
	Reset(ctx context.Context) error

	// Insert writes rows in one bulk operation. Every embedding must have
	// the store's dimension.
	Insert(ctx context.Context, rows []Row) error

	// Reindex rebuilds the ANN index and refreshes planner statistics.
	Reindex(ctx context.Context) error

	// Search returns up to limit rows of category, nearest first.
	Search(ctx context.Context, category string, embedding []float32, limit int) ([]Match, error)

	// Count returns the number of rows in category, or in the whole store
	// when category is empty.
	Count(ctx context.Context, category string) (uint64, error)

	// Health reports whether the store is reachable.
	Health(ctx context.Context) error

	// Dimension is the fixed embedding length of stored rows.
	Dimension() int

	Close() error
}

// DefaultCollection is the Qdrant collection holding all chunks.
const DefaultCollection = "chunks"

// DefaultTable is the PostgreSQL table holding all chunks.
const DefaultTable = "data"

// insertBatchSize bounds the points per upsert request.
const insertBatchSize = 100

func checkDimension(what string, got, want int) error {
	if got != want {
		return fmt.Errorf("%w: %s has %d dimensions, expected %d", ErrDimensionMismatch, what, got, want)
	}
	return nil
}

func checkRows(rows []Row, dimension int) error {
	for i, row := range rows {
		if err := checkDimension(fmt.Sprintf("row %d", i), len(row.Embedding), dimension); err != nil {
			return err
		}
	}
	return nil
}
