package catalog

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultTopK is the number of keywords kept per category.
const DefaultTopK = 10

// minKeywordRunes is the shortest token length that can become a keyword.
const minKeywordRunes = 3

const asciiPunctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ExtractKeywords returns the topK most frequent tokens across texts.
// Tokens are lowercased, stripped of punctuation, and split on whitespace;
// stopwords and tokens of two runes or fewer are dropped. Equal counts are
// ordered by first occurrence. A nil stopwords set disables filtering.
func ExtractKeywords(texts []string, stopwords Stopwords, topK int) []string {
	if topK <= 0 {
		return []string{}
	}

	counts := make(map[string]int)
	first := make(map[string]int)
	var order int

	for _, text := range texts {
		for _, tok := range strings.Fields(stripPunctuation(strings.ToLower(text))) {
			if utf8.RuneCountInString(tok) < minKeywordRunes || stopwords.Contains(tok) {
				continue
			}
			if _, seen := counts[tok]; !seen {
				first[tok] = order
				order++
			}
			counts[tok]++
		}
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return first[words[i]] < first[words[j]]
	})

	if len(words) > topK {
		words = words[:topK]
	}
	return words
}

// KeywordOverlap is the fraction of keywords occurring as substrings of the
// lowercased query. It is 0 when there are no keywords.
func KeywordOverlap(query string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	q := strings.ToLower(query)

	var hits int
	for _, kw := range keywords {
		if kw != "" && strings.Contains(q, kw) {
			hits++
		}
	}
	return min(1, float64(hits)/float64(len(keywords)))
}

func stripPunctuation(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || (r < utf8.RuneSelf && strings.ContainsRune(asciiPunctuation, r)) {
			return -1
		}
		return r
	}, s)
}
