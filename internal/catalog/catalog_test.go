package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestExtractKeywords_FrequencyAndTies(t *testing.T) {
	texts := []string{
		"Invoice totals: the invoice, the BUDGET and the ledger.",
		"Ledger entries match the invoice. Audit follows.",
	}

	got := ExtractKeywords(texts, DefaultStopwords(), 10)

	// invoice x3, ledger x2, then singletons by first appearance.
	assert.Equal(t, []string{"invoice", "ledger", "totals", "budget", "entries", "match", "audit", "follows"}, got)
}

func TestExtractKeywords_FiltersShortAndStopwords(t *testing.T) {
	got := ExtractKeywords([]string{"an ox is at the zoo with yak herds"}, DefaultStopwords(), 10)
	assert.Equal(t, []string{"zoo", "yak", "herds"}, got)
}

func TestExtractKeywords_StripsPunctuation(t *testing.T) {
	got := ExtractKeywords([]string{"e-mail, e.mail; (email)! co-op's «quoted»"}, nil, 10)
	assert.Equal(t, []string{"email", "coops", "quoted"}, got)
}

func TestExtractKeywords_TopK(t *testing.T) {
	var words []string
	for i := 0; i < 30; i++ {
		words = append(words, strings.Repeat(string(rune('a'+i%26)), 3+i/26))
	}
	got := ExtractKeywords([]string{strings.Join(words, " ")}, nil, 10)
	assert.Len(t, got, 10)
	assert.Equal(t, "aaa", got[0])

	assert.Empty(t, ExtractKeywords([]string{"plenty of words here"}, nil, 0))
	assert.Empty(t, ExtractKeywords(nil, nil, 10))
}

func TestKeywordOverlap(t *testing.T) {
	keywords := []string{"invoice", "budget", "ledger", "audit"}

	assert.Equal(t, 0.5, KeywordOverlap("Where is the INVOICE for the budget?", keywords))
	assert.Equal(t, 0.0, KeywordOverlap("nothing relevant", keywords))
	assert.Equal(t, 0.0, KeywordOverlap("invoice", nil))
	// Substring match, not token match.
	assert.Equal(t, 0.25, KeywordOverlap("auditors arrived", keywords))
}

func TestStopwords_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.txt")
	writeFile(t, path, "# domain noise\nAcme\n\nquarterly\n")

	s := DefaultStopwords()
	require.NoError(t, s.LoadFile(path))
	assert.True(t, s.Contains("acme"))
	assert.True(t, s.Contains("quarterly"))
	assert.True(t, s.Contains("the"))
	assert.False(t, s.Contains("# domain noise"))

	assert.Error(t, s.LoadFile(filepath.Join(t.TempDir(), "missing.txt")))
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "finance", "a.txt"), "budget budget invoice")
	writeFile(t, filepath.Join(root, "finance", "b.TXT"), "invoice ledger")
	writeFile(t, filepath.Join(root, "finance", "report.pdf"), "budget ignored pdfword")
	writeFile(t, filepath.Join(root, "finance", "nested", "c.txt"), "nestedword")
	writeFile(t, filepath.Join(root, "legal", "contract.docx"), "binary")
	writeFile(t, filepath.Join(root, "root.txt"), "not a category")
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	cats, err := Load(root, Options{})
	require.NoError(t, err)
	require.Len(t, cats, 2)

	assert.Equal(t, []string{"finance", "legal"}, Names(cats))
	assert.Equal(t, []string{"budget", "invoice", "ledger"}, cats[0].Keywords)
	assert.Equal(t, "Content related to finance", cats[0].ExemplarText)
	assert.Empty(t, cats[1].Keywords)
	assert.Nil(t, cats[0].ExemplarEmbedding)
}

func TestLoad_StopwordsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "finance", "a.txt"), "budget budget invoice")
	stop := filepath.Join(t.TempDir(), "stop.txt")
	writeFile(t, stop, "budget\n")

	cats, err := Load(root, Options{StopwordsFile: stop, TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"invoice"}, cats[0].Keywords)

	_, err = Load(root, Options{StopwordsFile: filepath.Join(root, "nope")})
	assert.Error(t, err)
}

func TestLoad_InvalidDir(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.ErrorIs(t, err, ErrInvalidDataDir)

	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file, "x")
	_, err = Load(file, Options{})
	assert.ErrorIs(t, err, ErrInvalidDataDir)
}

func TestLoad_SkipsInvalidUTF8(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "finance", "a.txt"), "budget budget invoice")
	writeFile(t, filepath.Join(root, "finance", "b.txt"), "ledger \xff\xfe ledger")

	cats, err := Load(root, Options{})
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, []string{"budget", "invoice"}, cats[0].Keywords)
}
