// Package embedding turns text into fixed-dimension, L2-normalized vectors.
// The same Provider instance serves ingestion and query time so that stored
// chunks and queries live in one vector space.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/bull/category-rag/internal/config"
)

// ErrDimension is returned when a backend yields vectors of the wrong length.
var ErrDimension = errors.New("unexpected embedding dimension")

// Provider generates normalized embeddings. Implementations are safe for
// concurrent use and block the caller until the vectors are ready.
type Provider interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedOne embeds a single text.
	EmbedOne(ctx context.Context, text string) ([]float32, error)

	// Dimension is the fixed vector length.
	Dimension() int
}

// New builds the provider selected by cfg.Backend.
func New(cfg config.EmbeddingConfig) (Provider, error) {
	switch cfg.Backend {
	case config.BackendOpenAI, "":
		client, err := NewClient(cfg.APIKey, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("create embedding client: %w", err)
		}
		return NewEmbedder(client, cfg.Model, cfg.Dimension, cfg.BatchSize), nil
	case config.BackendLangChain:
		return NewLangChainEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimension)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.Backend)
	}
}

// Normalize scales v to unit L2 length in place and returns it.
// Zero and non-finite vectors are returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Cosine returns the cosine similarity of two normalized vectors, which is
// their dot product clamped to [-1, 1]. Mismatched lengths, empty or
// non-finite vectors yield 0, and magnitudes below 1e-9 snap to 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		if math.IsNaN(x) || math.IsInf(x, 0) || math.IsNaN(y) || math.IsInf(y, 0) {
			return 0
		}
		dot += x * y
	}

	dot = math.Max(-1, math.Min(1, dot))
	if math.Abs(dot) < 1e-9 {
		return 0
	}
	return dot
}
