// Package chunker splits normalized document text into overlapping word windows.
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultChunkSize is the number of words per chunk.
	DefaultChunkSize = 150

	// DefaultChunkOverlap is the number of words shared by consecutive chunks.
	DefaultChunkOverlap = 20

	// MinChunkChars drops chunks too short to carry information. Length is
	// counted in characters, not bytes.
	MinChunkChars = 20
)

// SplitTextChunks tokenizes text on whitespace and slides a window of size words
// across it, stepping size-overlap words each time. Chunks shorter than
// MinChunkChars characters are discarded.
func SplitTextChunks(text string, size, overlap int) []string {
	if size <= 0 {
		return []string{}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	step := Step(size, overlap)

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunk := strings.TrimSpace(strings.Join(words[start:end], " "))
		if utf8.RuneCountInString(chunk) < MinChunkChars {
			continue
		}
		chunks = append(chunks, chunk)
	}

	if chunks == nil {
		return []string{}
	}
	return chunks
}

// Step returns how many words the window advances between chunks.
// It is always at least 1.
func Step(size, overlap int) int {
	if overlap < 0 {
		overlap = 0
	}
	step := size - min(overlap, size-1)
	if step <= 0 {
		step = max(1, size/2)
	}
	return step
}
