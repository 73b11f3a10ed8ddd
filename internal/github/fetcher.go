// Package github mirrors a category-structured corpus from a GitHub
// repository into a local data directory.
package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/bull/category-rag/internal/extract"
)

// Source identifies a corpus directory inside a repository. Every direct
// subdirectory of BasePath is a category.
type Source struct {
	Owner    string
	Repo     string
	Ref      string // branch, tag or SHA; empty means the default branch
	BasePath string
}

// ParseSource parses "owner/repo[/base/path][@ref]".
func ParseSource(s string) (Source, error) {
	var src Source
	if at := strings.LastIndex(s, "@"); at >= 0 {
		src.Ref = s[at+1:]
		s = s[:at]
	}
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Source{}, fmt.Errorf("invalid source %q, want owner/repo[/path][@ref]", s)
	}
	src.Owner, src.Repo = parts[0], parts[1]
	if len(parts) == 3 {
		src.BasePath = parts[2]
	}
	return src, nil
}

// MirrorResult lists what a mirror run wrote.
type MirrorResult struct {
	CommitSHA string
	Files     []string // paths relative to the destination
	Skipped   int      // unsupported or uncategorized files
}

// Fetcher handles fetching corpus files from a GitHub repository
type Fetcher struct {
	client *Client
	source Source
	logger *slog.Logger
}

// NewFetcher creates a new corpus fetcher
func NewFetcher(client *Client, source Source, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, source: source, logger: logger}
}

func (f *Fetcher) getOptions() *github.RepositoryContentGetOptions {
	if f.source.Ref == "" {
		return nil
	}
	return &github.RepositoryContentGetOptions{Ref: f.source.Ref}
}

// ListFiles recursively lists corpus files that the extractor supports and
// that sit inside a category directory. Paths are relative to BasePath.
func (f *Fetcher) ListFiles(ctx context.Context) (files []string, skipped int, err error) {
	err = f.listRecursive(ctx, f.source.BasePath, "", &files, &skipped)
	return files, skipped, err
}

func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string, files *[]string, skipped *int) error {
	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.source.Owner,
		f.source.Repo,
		fullPath,
		f.getOptions(),
	)
	if err != nil {
		return fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		name := item.GetName()
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}
		itemRelPath := path.Join(relativePath, name)

		switch item.GetType() {
		case "file":
			// Files at the corpus root belong to no category.
			if relativePath == "" || !extract.Supported(name) {
				*skipped++
				continue
			}
			*files = append(*files, itemRelPath)

		case "dir":
			if err := f.listRecursive(ctx, path.Join(fullPath, name), itemRelPath, files, skipped); err != nil {
				return err
			}
		}
	}

	return nil
}

// Mirror downloads every listed file into destDir, keeping the relative
// layout so that directory names become categories.
func (f *Fetcher) Mirror(ctx context.Context, destDir string) (*MirrorResult, error) {
	sha, err := f.GetLatestCommitSHA(ctx)
	if err != nil {
		return nil, err
	}

	files, skipped, err := f.ListFiles(ctx)
	if err != nil {
		return nil, err
	}
	f.logger.Info("Found corpus files", "count", len(files), "skipped", skipped, "commit", sha)

	result := &MirrorResult{CommitSHA: sha, Skipped: skipped}
	for _, rel := range files {
		if err := f.download(ctx, rel, destDir); err != nil {
			return result, err
		}
		result.Files = append(result.Files, rel)
		f.logger.Debug("Downloaded file", "path", rel)
	}

	return result, nil
}

// download fetches one file. DownloadContents handles binary files larger
// than the contents API inlines.
func (f *Fetcher) download(ctx context.Context, rel, destDir string) error {
	fullPath := path.Join(f.source.BasePath, rel)

	rc, _, err := f.client.Repositories.DownloadContents(
		ctx,
		f.source.Owner,
		f.source.Repo,
		fullPath,
		f.getOptions(),
	)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", fullPath, err)
	}
	defer rc.Close()

	target, err := localPath(destDir, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", rel, err)
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	return out.Close()
}

// localPath maps a repository-relative path under destDir, refusing paths
// that would escape it.
func localPath(destDir, rel string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing path outside destination: %q", rel)
	}
	return filepath.Join(destDir, clean), nil
}

// GetLatestCommitSHA retrieves the SHA of the most recent commit affecting the corpus directory
func (f *Fetcher) GetLatestCommitSHA(ctx context.Context) (string, error) {
	commits, _, err := f.client.Repositories.ListCommits(
		ctx,
		f.source.Owner,
		f.source.Repo,
		&github.CommitsListOptions{
			SHA:  f.source.Ref,
			Path: f.source.BasePath,
			ListOptions: github.ListOptions{
				PerPage: 1,
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to get latest commit: %w", err)
	}

	if len(commits) == 0 {
		return "", fmt.Errorf("no commits found for path %s", f.source.BasePath)
	}

	if commits[0].SHA == nil {
		return "", fmt.Errorf("commit SHA is nil")
	}

	return *commits[0].SHA, nil
}
