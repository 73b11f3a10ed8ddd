package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// words builds a text of n distinct words: "word0000 word0001 ...".
func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%04d", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitTextChunks_ThreeHundredWords(t *testing.T) {
	chunks := SplitTextChunks(words(300), DefaultChunkSize, DefaultChunkOverlap)
	require.Len(t, chunks, 3)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	third := strings.Fields(chunks[2])

	assert.Len(t, first, 150)
	assert.Equal(t, "word0000", first[0])
	assert.Equal(t, "word0149", first[149])

	assert.Len(t, second, 150)
	assert.Equal(t, "word0130", second[0])
	assert.Equal(t, "word0279", second[149])

	assert.Len(t, third, 40)
	assert.Equal(t, "word0260", third[0])
	assert.Equal(t, "word0299", third[39])
}

func TestSplitTextChunks_CoversAllWords(t *testing.T) {
	for _, n := range []int{3, 7, 149, 150, 151, 280, 281, 1000} {
		text := words(n)
		chunks := SplitTextChunks(text, DefaultChunkSize, DefaultChunkOverlap)

		seen := make(map[string]bool)
		for _, c := range chunks {
			assert.GreaterOrEqual(t, utf8.RuneCountInString(c), MinChunkChars)
			for _, w := range strings.Fields(c) {
				seen[w] = true
			}
		}
		for _, w := range strings.Fields(text) {
			assert.True(t, seen[w], "n=%d: word %s not covered", n, w)
		}
	}
}

func TestSplitTextChunks_Idempotent(t *testing.T) {
	text := words(512)
	a := SplitTextChunks(text, DefaultChunkSize, DefaultChunkOverlap)
	b := SplitTextChunks(text, DefaultChunkSize, DefaultChunkOverlap)
	assert.Equal(t, a, b)
}

func TestSplitTextChunks_NormalizesWhitespace(t *testing.T) {
	chunks := SplitTextChunks("  alpha\tbeta\n\ngamma   delta epsilon  ", 150, 20)
	require.Len(t, chunks, 1)
	assert.Equal(t, "alpha beta gamma delta epsilon", chunks[0])
}

func TestSplitTextChunks_DropsShortChunks(t *testing.T) {
	assert.Empty(t, SplitTextChunks("too short", 150, 20))

	// The trailing window holds a single short word and is discarded.
	text := strings.Repeat("abcdefghij ", 10) + "x"
	chunks := SplitTextChunks(text, 10, 0)
	require.Len(t, chunks, 1)
	assert.Len(t, strings.Fields(chunks[0]), 10)
}

func TestSplitTextChunks_EmptyInput(t *testing.T) {
	assert.Empty(t, SplitTextChunks("", 150, 20))
	assert.Empty(t, SplitTextChunks("   \n\t ", 150, 20))
	assert.Empty(t, SplitTextChunks(words(10), 0, 0))
	assert.NotNil(t, SplitTextChunks("", 150, 20))
}

func TestStep(t *testing.T) {
	tests := []struct {
		size, overlap, want int
	}{
		{150, 20, 130},
		{150, 0, 150},
		{150, 149, 1},
		{150, 150, 1},
		{150, 500, 1},
		{10, -5, 10},
		{1, 1, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Step(tt.size, tt.overlap), "size=%d overlap=%d", tt.size, tt.overlap)
	}
}

func TestSplitTextChunks_OverlapNotLessThanSize(t *testing.T) {
	// Forward progress is guaranteed even when overlap >= size.
	// Windows starting at 28 and 29 hold fewer than 20 characters.
	chunks := SplitTextChunks(words(30), 10, 50)
	assert.Len(t, chunks, 28)
}

func TestSplitTextChunks_CountsCharactersNotBytes(t *testing.T) {
	// 13 characters but 23 bytes.
	assert.Empty(t, SplitTextChunks("ğüşiöç ğüşiöç", 150, 20))

	// 20 characters in 32 bytes is kept.
	text := "ğüşiöçğüş ğüşiöçğüşi"
	require.Equal(t, 20, utf8.RuneCountInString(text))
	assert.Equal(t, []string{text}, SplitTextChunks(text, 150, 20))

	for _, c := range SplitTextChunks(strings.Repeat("çağ ", 200), 10, 2) {
		assert.GreaterOrEqual(t, utf8.RuneCountInString(c), MinChunkChars)
	}
}
