package embedding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/category-rag/internal/config"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, norm(v), 1e-6)

	zero := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}

func TestCosine_SelfIsOne(t *testing.T) {
	v := Normalize([]float32{0.3, -1.2, 2.5, 0.01})
	assert.InDelta(t, 1.0, Cosine(v, v), 1e-6)
	assert.LessOrEqual(t, Cosine(v, v), 1.0)
}

func TestCosine_Range(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 0},
		{-1, 0, 0},
		{0.5, 0.5, 0.5},
		{0.1, -0.9, 0.3},
		{-0.7, -0.2, 0.4},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			c := Cosine(Normalize(append([]float32(nil), a...)), Normalize(append([]float32(nil), b...)))
			assert.GreaterOrEqual(t, c, -1.0)
			assert.LessOrEqual(t, c, 1.0)
		}
	}
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestCosine_Degenerate(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{0, 0}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.Equal(t, 0.0, Cosine([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{float32(math.NaN()), 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, Cosine([]float32{float32(math.Inf(1)), 0}, []float32{1, 0}))
	// Orthogonal up to float noise snaps to zero.
	assert.Equal(t, 0.0, Cosine([]float32{1, 1e-12}, []float32{0, 1}))
}

func TestCosine_ClampsDrift(t *testing.T) {
	// Slightly over-unit vectors must not report similarity above 1.
	v := []float32{1.0000001, 0}
	assert.Equal(t, 1.0, Cosine(v, v))
}

func TestNew_Backends(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Backend: config.BackendOpenAI})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	p, err := New(config.EmbeddingConfig{Backend: config.BackendOpenAI, APIKey: "sk-test", Dimension: 768})
	require.NoError(t, err)
	assert.Equal(t, 768, p.Dimension())

	_, err = New(config.EmbeddingConfig{Backend: config.BackendLangChain, Dimension: 768})
	assert.Error(t, err)

	_, err = New(config.EmbeddingConfig{Backend: "onnx"})
	assert.Error(t, err)
}

func TestNewEmbedder_Defaults(t *testing.T) {
	e := NewEmbedder(&Client{}, "", 0, 0)
	assert.Equal(t, DefaultModel, e.model)
	assert.Equal(t, DefaultDimension, e.Dimension())
	assert.Equal(t, DefaultBatchSize, e.batchSize)
}
