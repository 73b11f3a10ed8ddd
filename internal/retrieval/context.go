package retrieval

import "strings"

// ContextSeparator joins chunks into a single context blob.
const ContextSeparator = "\n---\n"

// MinContextChars is the shortest blob treated as real context.
const MinContextChars = 10

// NoInformationMessage is returned to users when no context is available.
const NoInformationMessage = "Sorry, I could not find any relevant information to answer your question."

// JoinContext joins chunks with ContextSeparator.
func JoinContext(chunks []string) string {
	return strings.Join(chunks, ContextSeparator)
}

// HasContext reports whether blob is long enough to be worth passing on to
// a generation step.
func HasContext(blob string) bool {
	return len(strings.TrimSpace(blob)) >= MinContextChars
}
