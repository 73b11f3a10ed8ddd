package extract

import (
	"strings"

	"github.com/lu4p/cat/docxtxt"
)

// readDOCX extracts the document body text. Blank paragraphs are dropped;
// paragraphs are joined by newlines.
func readDOCX(path string) (string, error) {
	raw, err := docxtxt.ToStr(path)
	if err != nil {
		return "", err
	}
	return joinParagraphs(raw), nil
}

func joinParagraphs(raw string) string {
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, l := range lines {
		if p := strings.TrimSpace(l); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}
