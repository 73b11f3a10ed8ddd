// Package retrieval selects the categories relevant to a query and fetches
// context chunks from those categories only.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bull/category-rag/internal/catalog"
	"github.com/bull/category-rag/internal/embedding"
	"github.com/bull/category-rag/internal/storage"
)

// Classifier scores text against labels, each label independently in [0,1].
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (map[string]float64, error)
}

// Searcher is the read side of a vector store.
type Searcher interface {
	Search(ctx context.Context, category string, embedding []float32, limit int) ([]storage.Match, error)
}

// CategoryLoader produces the category catalog at initialization.
type CategoryLoader func(ctx context.Context) ([]catalog.Category, error)

// DirectoryLoader loads categories from the corpus layout under dataDir.
func DirectoryLoader(dataDir string, opts catalog.Options) CategoryLoader {
	return func(context.Context) ([]catalog.Category, error) {
		return catalog.Load(dataDir, opts)
	}
}

// Selection is the outcome of category selection for one query.
type Selection struct {
	// Categories are the selected names, best first.
	Categories []string

	// Scores has one record per known category, in catalog order.
	Scores []CategoryScore
}

// Result is the outcome of context retrieval for one query.
type Result struct {
	Selection *Selection
	Matches   []storage.Match
}

// Contents returns the chunk texts in retrieval order.
func (r *Result) Contents() []string {
	out := make([]string, len(r.Matches))
	for i, m := range r.Matches {
		out[i] = m.Content
	}
	return out
}

// Service is the long-lived retrieval core. It is constructed once with its
// collaborators, then initialized before serving queries.
type Service struct {
	embedder   embedding.Provider
	classifier Classifier
	store      Searcher
	loader     CategoryLoader
	policy     Policy
	logger     *slog.Logger

	mu         sync.Mutex
	ready      atomic.Bool
	categories []catalog.Category
}

// NewService creates a retrieval service. Missing collaborators are a
// structural error.
func NewService(
	embedder embedding.Provider,
	classifier Classifier,
	store Searcher,
	loader CategoryLoader,
	policy Policy,
	logger *slog.Logger,
) (*Service, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if classifier == nil {
		return nil, ErrClassifierRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if loader == nil {
		return nil, fmt.Errorf("category loader is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		embedder:   embedder,
		classifier: classifier,
		store:      store,
		loader:     loader,
		policy:     policy,
		logger:     logger,
	}, nil
}

// Initialize loads the category catalog and embeds every exemplar. It runs
// at most once successfully; concurrent callers block until the first one
// finishes and then observe the same state. A failed attempt leaves the
// service not ready and may be retried.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready.Load() {
		return nil
	}

	s.logger.Info("Initializing retrieval service")

	categories, err := s.loader(ctx)
	if err != nil {
		return fmt.Errorf("load categories: %w", err)
	}
	if len(categories) == 0 {
		return ErrNoCategories
	}

	texts := make([]string, len(categories))
	for i, c := range categories {
		texts[i] = c.ExemplarText
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed exemplars: %w", err)
	}
	if len(vecs) != len(categories) {
		return fmt.Errorf("embed exemplars: got %d embeddings for %d categories", len(vecs), len(categories))
	}
	for i := range categories {
		categories[i].ExemplarEmbedding = vecs[i]
	}

	s.categories = categories
	s.ready.Store(true)

	s.logger.Info("Retrieval service ready", "categories", len(categories))
	return nil
}

// Ready reports whether Initialize has completed successfully.
func (s *Service) Ready() bool {
	return s.ready.Load()
}

// Categories returns a copy of the loaded catalog, or nil before
// initialization.
func (s *Service) Categories() []catalog.Category {
	if !s.ready.Load() {
		return nil
	}
	out := slices.Clone(s.categories)
	for i := range out {
		out[i].Keywords = slices.Clone(out[i].Keywords)
		out[i].ExemplarEmbedding = slices.Clone(out[i].ExemplarEmbedding)
	}
	return out
}

// Policy returns the selection policy in use.
func (s *Service) Policy() Policy {
	return s.policy
}

func emptySelection() *Selection {
	return &Selection{Categories: []string{}, Scores: []CategoryScore{}}
}

// SelectCategories scores every category for query and returns the selected
// ones, best first. Before initialization it returns an empty selection and
// ErrNotReady.
func (s *Service) SelectCategories(ctx context.Context, query string) (*Selection, error) {
	if !s.ready.Load() {
		return emptySelection(), ErrNotReady
	}

	queryVec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return emptySelection(), fmt.Errorf("embed query: %w", err)
	}
	return s.selectFor(ctx, query, queryVec)
}

func (s *Service) selectFor(ctx context.Context, query string, queryVec []float32) (*Selection, error) {
	names := catalog.Names(s.categories)

	zeroShot, err := s.classifier.Classify(ctx, query, names)
	if err != nil {
		return emptySelection(), fmt.Errorf("classify query: %w", err)
	}

	scores := make([]CategoryScore, 0, len(s.categories))
	for _, c := range s.categories {
		score := s.scoreCategory(c, query, queryVec, zeroShot[c.Name])
		if score.Skipped {
			s.logger.Warn("Skipping category", "category", c.Name, "reason", score.Reason)
		}
		scores = append(scores, score)
	}

	selected := s.policy.Select(scores)
	s.logger.Debug("Selected categories", "query_len", len(query), "selected", selected)

	return &Selection{Categories: selected, Scores: scores}, nil
}

func (s *Service) scoreCategory(c catalog.Category, query string, queryVec []float32, zeroShot float64) CategoryScore {
	score := CategoryScore{Name: c.Name}

	switch {
	case len(c.ExemplarEmbedding) == 0:
		score.Skipped, score.Reason = true, "no exemplar embedding"
		return score
	case len(c.ExemplarEmbedding) != len(queryVec):
		score.Skipped, score.Reason = true, "exemplar dimension mismatch"
		return score
	}

	score.Cosine = embedding.Cosine(queryVec, c.ExemplarEmbedding)
	score.Keyword = catalog.KeywordOverlap(query, c.Keywords)
	score.ZeroShot = zeroShot
	score.Final = s.policy.Fuse(score.Cosine, score.Keyword, score.ZeroShot)

	if math.IsNaN(score.Final) || math.IsInf(score.Final, 0) {
		score.Skipped, score.Reason = true, "non-finite score"
	}
	return score
}

// Retrieve embeds query once, selects categories, and fetches up to
// FetchLimit chunks from each selected category in selection order, nearest
// first within a category. Any store failure aborts the whole retrieval and
// yields no matches.
func (s *Service) Retrieve(ctx context.Context, query string) (*Result, error) {
	empty := &Result{Selection: emptySelection(), Matches: []storage.Match{}}
	if !s.ready.Load() {
		return empty, ErrNotReady
	}

	queryVec, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		return empty, fmt.Errorf("embed query: %w", err)
	}

	selection, err := s.selectFor(ctx, query, queryVec)
	if err != nil {
		return empty, err
	}
	empty.Selection = selection

	if len(selection.Categories) == 0 {
		s.logger.Info("No relevant category for query")
		return empty, nil
	}

	var matches []storage.Match
	for _, category := range selection.Categories {
		found, err := s.store.Search(ctx, category, queryVec, s.policy.FetchLimit)
		if err != nil {
			s.logger.Error("Context retrieval failed", "category", category, "error", err)
			return empty, fmt.Errorf("search category %s: %w", category, err)
		}
		matches = append(matches, found...)
	}

	if matches == nil {
		matches = []storage.Match{}
	}
	return &Result{Selection: selection, Matches: matches}, nil
}

// RetrieveContext returns the retrieved chunk texts for query. An empty
// result means there is no relevant context.
func (s *Service) RetrieveContext(ctx context.Context, query string) ([]string, error) {
	result, err := s.Retrieve(ctx, query)
	return result.Contents(), err
}
