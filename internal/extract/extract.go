// Package extract converts PDF, DOCX, markdown and plain-text files into
// normalized text for chunking.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnreadable is returned when a file yields no usable text. Missing
	// files, corrupted documents and empty files all collapse to this error.
	ErrUnreadable = errors.New("file unreadable")

	// ErrUnsupported is returned for extensions with no reader. It wraps
	// ErrUnreadable so callers can treat both the same way.
	ErrUnsupported = fmt.Errorf("%w: unsupported file type", ErrUnreadable)
)

type reader func(path string) (string, error)

var readers = map[string]reader{
	".pdf":  readPDF,
	".docx": readDOCX,
	".txt":  readTXT,
	".md":   readMarkdown,
}

// Extensions returns the supported file extensions, lowercased with leading dot.
func Extensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md"}
}

// Supported reports whether path has an extension ReadFile can handle.
func Supported(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ReadFile dispatches on the file extension and returns the trimmed text content.
// Every failure is reported as ErrUnreadable (possibly wrapped with the cause).
func ReadFile(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrUnreadable)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a file", ErrUnreadable, path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	read, ok := readers[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}

	text, err := read(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: no text extracted from %s", ErrUnreadable, path)
	}
	return text, nil
}

func readTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", errors.New("invalid UTF-8")
	}
	return string(data), nil
}
