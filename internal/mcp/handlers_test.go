package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/retrieval"
	"github.com/bull/category-rag/internal/storage"
)

type fakeRetriever struct {
	ready      bool
	categories []catalog.Category
	selection  *retrieval.Selection
	result     *retrieval.Result
	err        error
}

func (f *fakeRetriever) Ready() bool                     { return f.ready }
func (f *fakeRetriever) Categories() []catalog.Category { return f.categories }

func (f *fakeRetriever) SelectCategories(ctx context.Context, query string) (*retrieval.Selection, error) {
	return f.selection, f.err
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string) (*retrieval.Result, error) {
	return f.result, f.err
}

type fakeCounter struct {
	counts map[string]uint64
	err    error
}

func (f *fakeCounter) Count(ctx context.Context, category string) (uint64, error) {
	return f.counts[category], f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSelectHandler(t *testing.T) {
	svc := &fakeRetriever{
		ready: true,
		selection: &retrieval.Selection{
			Categories: []string{"finance"},
			Scores: []retrieval.CategoryScore{
				{Name: "finance", Cosine: 0.8, Keyword: 0.5, ZeroShot: 0.9, Final: 0.74},
				{Name: "sports", Final: 0.05},
			},
		},
	}

	_, out, err := makeSelectHandler(svc)(context.Background(), nil, SelectCategoriesInput{Query: "quarterly revenue"})
	require.NoError(t, err)
	assert.Equal(t, []string{"finance"}, out.Categories)
	require.Len(t, out.Scores, 2)
	assert.Equal(t, "finance", out.Scores[0].Name)
	assert.InDelta(t, 0.74, out.Scores[0].Final, 1e-9)
	assert.Empty(t, out.Message)
}

func TestSelectHandler_EmptySelection(t *testing.T) {
	svc := &fakeRetriever{ready: true, selection: &retrieval.Selection{Categories: []string{}, Scores: []retrieval.CategoryScore{}}}

	_, out, err := makeSelectHandler(svc)(context.Background(), nil, SelectCategoriesInput{Query: "weather"})
	require.NoError(t, err)
	assert.Empty(t, out.Categories)
	assert.NotEmpty(t, out.Message)
}

func TestSelectHandler_NotReady(t *testing.T) {
	svc := &fakeRetriever{err: retrieval.ErrNotReady}

	_, out, err := makeSelectHandler(svc)(context.Background(), nil, SelectCategoriesInput{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, notReadyMessage, out.Message)
	assert.NotNil(t, out.Categories)
}

func TestSelectHandler_Error(t *testing.T) {
	svc := &fakeRetriever{err: errors.New("classifier down")}

	_, _, err := makeSelectHandler(svc)(context.Background(), nil, SelectCategoriesInput{Query: "q"})
	assert.ErrorContains(t, err, "classifier down")
}

func TestRetrieveHandler(t *testing.T) {
	svc := &fakeRetriever{
		ready: true,
		result: &retrieval.Result{
			Selection: &retrieval.Selection{Categories: []string{"finance"}},
			Matches: []storage.Match{
				{Content: "Revenue grew twelve percent.", Category: "finance", Score: 0.91},
				{Content: "Margins held steady this year.", Category: "finance", Score: 0.84},
			},
		},
	}

	_, out, err := makeRetrieveHandler(svc, quietLogger())(context.Background(), nil, RetrieveContextInput{Query: "revenue"})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "Revenue grew twelve percent.\n---\nMargins held steady this year.", out.Context)
	require.Len(t, out.Chunks, 2)
	assert.Equal(t, "finance", out.Chunks[1].Category)
	assert.Equal(t, []string{"finance"}, out.Categories)
	assert.Empty(t, out.Message)
}

func TestRetrieveHandler_NoInformation(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeRetriever
	}{
		{
			name: "no matches",
			svc: &fakeRetriever{ready: true, result: &retrieval.Result{
				Selection: &retrieval.Selection{Categories: []string{}},
			}},
		},
		{
			name: "too short",
			svc: &fakeRetriever{ready: true, result: &retrieval.Result{
				Selection: &retrieval.Selection{Categories: []string{"finance"}},
				Matches:   []storage.Match{{Content: "  ok  ", Category: "finance"}},
			}},
		},
		{
			name: "store failure",
			svc:  &fakeRetriever{ready: true, err: storage.ErrStoreUnreachable},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, out, err := makeRetrieveHandler(tt.svc, quietLogger())(context.Background(), nil, RetrieveContextInput{Query: "q"})
			require.NoError(t, err)
			assert.False(t, out.Found)
			assert.Empty(t, out.Context)
			assert.Equal(t, retrieval.NoInformationMessage, out.Message)
		})
	}
}

func TestRetrieveHandler_NotReady(t *testing.T) {
	svc := &fakeRetriever{err: retrieval.ErrNotReady}

	_, out, err := makeRetrieveHandler(svc, quietLogger())(context.Background(), nil, RetrieveContextInput{Query: "q"})
	require.NoError(t, err)
	assert.False(t, out.Found)
	assert.Equal(t, notReadyMessage, out.Message)
}

func TestStatusHandler(t *testing.T) {
	svc := &fakeRetriever{
		ready: true,
		categories: []catalog.Category{
			{Name: "finance", Keywords: []string{"revenue", "margin"}},
			{Name: "sports"},
		},
	}
	store := &fakeCounter{counts: map[string]uint64{"": 30, "finance": 18, "sports": 12}}

	_, out, err := makeStatusHandler(svc, store)(context.Background(), nil, StatusInput{})
	require.NoError(t, err)
	assert.True(t, out.Ready)
	assert.Equal(t, uint64(30), out.TotalChunks)
	require.Len(t, out.Categories, 2)
	assert.Equal(t, CategoryStatus{Name: "finance", Chunks: 18, Keywords: []string{"revenue", "margin"}}, out.Categories[0])
	assert.Equal(t, []string{}, out.Categories[1].Keywords)
}

func TestStatusHandler_StoreError(t *testing.T) {
	store := &fakeCounter{err: storage.ErrStoreUnreachable}

	_, _, err := makeStatusHandler(&fakeRetriever{}, store)(context.Background(), nil, StatusInput{})
	assert.ErrorIs(t, err, storage.ErrStoreUnreachable)
	assert.ErrorContains(t, err, "store_error")
}

func TestNewServer_RegistersTools(t *testing.T) {
	s := NewServer(&Config{Retriever: &fakeRetriever{}, Store: &fakeCounter{}})
	require.NotNil(t, s)
	assert.NotNil(t, s.HTTPHandler(true))
}
