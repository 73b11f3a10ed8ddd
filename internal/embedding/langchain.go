package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangChainEmbedder implements Provider on top of langchaingo, for local
// OpenAI-compatible servers such as Ollama or llama.cpp.
type LangChainEmbedder struct {
	embedder  embeddings.Embedder
	dimension int
	logger    *slog.Logger
}

// NewLangChainEmbedder connects to the OpenAI-compatible server at baseURL.
// Local servers usually need no token, so "none" is sent.
func NewLangChainEmbedder(baseURL, model string, dimension int) (*LangChainEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("langchain embedder requires a base URL")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("langchain embedder requires a positive dimension, got %d", dimension)
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}

	return &LangChainEmbedder{
		embedder:  embedder,
		dimension: dimension,
		logger:    slog.Default().With("component", "langchain-embedder"),
	}, nil
}

// Dimension returns the configured vector length.
func (e *LangChainEmbedder) Dimension() int {
	return e.dimension
}

// EmbedOne embeds a single text.
func (e *LangChainEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Embed generates normalized embeddings and checks their dimension.
func (e *LangChainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(vecs), len(texts))
	}

	for i, v := range vecs {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimension, len(v), e.dimension)
		}
		vecs[i] = Normalize(v)
	}
	return vecs, nil
}
