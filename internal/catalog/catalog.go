// Package catalog discovers categories from the corpus layout and derives
// the per-category keyword tables used for selection.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrInvalidDataDir is returned when the corpus root is missing or not a directory.
var ErrInvalidDataDir = errors.New("data directory is not a valid directory")

// Category is a topical partition of the corpus. Name doubles as the
// top-level directory name and the store partition label.
type Category struct {
	Name              string
	Keywords          []string
	ExemplarText      string
	ExemplarEmbedding []float32
}

// Options tunes Load.
type Options struct {
	// TopK is the keyword count per category. Zero means DefaultTopK.
	TopK int

	// StopwordsFile optionally extends the built-in stopword list.
	StopwordsFile string

	Logger *slog.Logger
}

// ExemplarText is the descriptive string embedded to represent a category.
func ExemplarText(name string) string {
	return "Content related to " + name
}

// Load lists the top-level subdirectories of dataDir as categories, sorted by
// name, and extracts keywords from each one's .txt files. Unreadable keyword
// files are logged and skipped. ExemplarEmbedding is left empty for the
// caller to fill.
func Load(dataDir string, opts Options) ([]Category, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	stopwords := DefaultStopwords()
	if opts.StopwordsFile != "" {
		if err := stopwords.LoadFile(opts.StopwordsFile); err != nil {
			return nil, err
		}
	}

	info, err := os.Stat(dataDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataDir, dataDir)
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("list data directory: %w", err)
	}

	categories := make([]Category, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		texts := readKeywordSources(filepath.Join(dataDir, name), logger)
		keywords := ExtractKeywords(texts, stopwords, topK)
		if len(keywords) == 0 {
			logger.Warn("no keywords found for category", "category", name)
		} else {
			logger.Debug("extracted category keywords", "category", name, "keywords", keywords)
		}

		categories = append(categories, Category{
			Name:         name,
			Keywords:     keywords,
			ExemplarText: ExemplarText(name),
		})
	}

	logger.Info("loaded categories", "count", len(categories), "data_dir", dataDir)
	return categories, nil
}

// Names returns the category names in order.
func Names(categories []Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}

// readKeywordSources reads the .txt files directly inside dir, in name order.
func readKeywordSources(dir string, logger *slog.Logger) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Error("failed to list category directory", "path", dir, "error", err)
		return nil
	}

	var texts []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read keyword file", "path", path, "error", err)
			continue
		}
		if !utf8.Valid(data) {
			logger.Warn("skipping keyword file that is not valid UTF-8", "path", path)
			continue
		}
		texts = append(texts, string(data))
	}
	return texts
}
