package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/retrieval"
)

// notReadyMessage is shown while the service is still initializing.
const notReadyMessage = "The retrieval service is still starting up. Please try again shortly."

// Retriever is the query side used by the tools. *retrieval.Service implements it.
type Retriever interface {
	Ready() bool
	Categories() []catalog.Category
	SelectCategories(ctx context.Context, query string) (*retrieval.Selection, error)
	Retrieve(ctx context.Context, query string) (*retrieval.Result, error)
}

// Counter reports stored row counts.
type Counter interface {
	Count(ctx context.Context, category string) (uint64, error)
}

func toScores(in []retrieval.CategoryScore) []CategoryScore {
	out := make([]CategoryScore, len(in))
	for i, s := range in {
		out[i] = CategoryScore{
			Name:     s.Name,
			Cosine:   s.Cosine,
			Keyword:  s.Keyword,
			ZeroShot: s.ZeroShot,
			Final:    s.Final,
			Skipped:  s.Skipped,
			Reason:   s.Reason,
		}
	}
	return out
}

// makeSelectHandler creates the select_categories tool handler.
func makeSelectHandler(svc Retriever) func(
	context.Context, *mcp.CallToolRequest, SelectCategoriesInput,
) (*mcp.CallToolResult, SelectCategoriesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SelectCategoriesInput) (
		*mcp.CallToolResult, SelectCategoriesOutput, error,
	) {
		sel, err := svc.SelectCategories(ctx, input.Query)
		if errors.Is(err, retrieval.ErrNotReady) {
			return nil, SelectCategoriesOutput{
				Categories: []string{},
				Scores:     []CategoryScore{},
				Message:    notReadyMessage,
			}, nil
		}
		if err != nil {
			return nil, SelectCategoriesOutput{}, fmt.Errorf("failed to select categories: %w", err)
		}

		out := SelectCategoriesOutput{
			Categories: sel.Categories,
			Scores:     toScores(sel.Scores),
		}
		if len(out.Categories) == 0 {
			out.Message = "No category is relevant enough to this query."
		}
		return nil, out, nil
	}
}

// makeRetrieveHandler creates the retrieve_context tool handler.
// Store and classifier failures are logged and reported to the user as
// "no information found" rather than surfaced verbatim.
func makeRetrieveHandler(svc Retriever, logger *slog.Logger) func(
	context.Context, *mcp.CallToolRequest, RetrieveContextInput,
) (*mcp.CallToolResult, RetrieveContextOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input RetrieveContextInput) (
		*mcp.CallToolResult, RetrieveContextOutput, error,
	) {
		empty := RetrieveContextOutput{
			Chunks:     []ChunkResult{},
			Categories: []string{},
			Message:    retrieval.NoInformationMessage,
		}

		result, err := svc.Retrieve(ctx, input.Query)
		if errors.Is(err, retrieval.ErrNotReady) {
			empty.Message = notReadyMessage
			return nil, empty, nil
		}
		if err != nil {
			logger.Error("Context retrieval failed", "error", err)
			return nil, empty, nil
		}

		chunks := make([]ChunkResult, len(result.Matches))
		for i, m := range result.Matches {
			chunks[i] = ChunkResult{Category: m.Category, Content: m.Content, Score: m.Score}
		}

		blob := retrieval.JoinContext(result.Contents())
		if !retrieval.HasContext(blob) {
			empty.Categories = result.Selection.Categories
			return nil, empty, nil
		}

		return nil, RetrieveContextOutput{
			Context:    blob,
			Chunks:     chunks,
			Categories: result.Selection.Categories,
			Found:      true,
		}, nil
	}
}

// makeStatusHandler creates the get_index_status tool handler.
func makeStatusHandler(svc Retriever, store Counter) func(
	context.Context, *mcp.CallToolRequest, StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatusInput) (
		*mcp.CallToolResult, StatusOutput, error,
	) {
		total, err := store.Count(ctx, "")
		if err != nil {
			return nil, StatusOutput{}, fmt.Errorf("store_error: failed to count chunks: %w", err)
		}

		out := StatusOutput{
			Ready:       svc.Ready(),
			TotalChunks: total,
			Categories:  []CategoryStatus{},
		}
		for _, c := range svc.Categories() {
			n, err := store.Count(ctx, c.Name)
			if err != nil {
				return nil, StatusOutput{}, fmt.Errorf("store_error: failed to count category %s: %w", c.Name, err)
			}
			keywords := c.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			out.Categories = append(out.Categories, CategoryStatus{Name: c.Name, Chunks: n, Keywords: keywords})
		}

		return nil, out, nil
	}
}
