package retrieval

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/embedding"
	"github.com/bull/category-rag/internal/storage"
)

// fakeEmbedder returns fixed vectors per text, or fallback for unknown text.
type fakeEmbedder struct {
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    atomic.Int32
}

var _ embedding.Provider = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Dimension() int { return len(f.fallback) }

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.fallback
		}
	}
	return out, nil
}

type fakeClassifier struct {
	scores map[string]float64
	err    error
}

func (f *fakeClassifier) Classify(_ context.Context, _ string, labels []string) (map[string]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]float64, len(labels))
	for _, l := range labels {
		out[l] = f.scores[l]
	}
	return out, nil
}

type fakeStore struct {
	mu       sync.Mutex
	rows     map[string][]storage.Match
	failOn   string
	searched []string
}

func (f *fakeStore) Search(_ context.Context, category string, _ []float32, limit int) ([]storage.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searched = append(f.searched, category)
	if category == f.failOn {
		return nil, errors.New("connection refused")
	}
	rows := f.rows[category]
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return append([]storage.Match(nil), rows...), nil
}

func staticLoader(categories ...catalog.Category) CategoryLoader {
	return func(context.Context) ([]catalog.Category, error) {
		out := make([]catalog.Category, len(categories))
		copy(out, categories)
		return out, nil
	}
}

// unitWithCosine returns a unit vector whose dot product with (1,0,0) is c,
// placing the remainder on the given axis.
func unitWithCosine(c float64, axis int) []float32 {
	v := []float32{float32(c), 0, 0}
	v[axis] = float32(math.Sqrt(1 - c*c))
	return v
}
