// Package mcp exposes category selection and context retrieval as MCP tools.
package mcp

// SelectCategoriesInput defines the input parameters for the select_categories tool.
type SelectCategoriesInput struct {
	// Query is the natural-language question.
	Query string `json:"query" jsonschema:"the natural-language question to route"`
}

// SelectCategoriesOutput contains the selected categories and every score.
type SelectCategoriesOutput struct {
	// Categories are the selected category names, best first.
	Categories []string `json:"categories"`
	// Scores has one entry per known category.
	Scores []CategoryScore `json:"scores"`
	// Message explains an empty selection.
	Message string `json:"message,omitempty"`
}

// CategoryScore is the per-signal breakdown for one category.
type CategoryScore struct {
	Name     string  `json:"name"`
	Cosine   float64 `json:"cosine"`
	Keyword  float64 `json:"keyword"`
	ZeroShot float64 `json:"zero_shot"`
	Final    float64 `json:"final"`
	Skipped  bool    `json:"skipped,omitempty"`
	Reason   string  `json:"reason,omitempty"`
}

// RetrieveContextInput defines the input parameters for the retrieve_context tool.
type RetrieveContextInput struct {
	Query string `json:"query" jsonschema:"the natural-language question to find context for"`
}

// RetrieveContextOutput contains the joined context blob and its parts.
type RetrieveContextOutput struct {
	// Context is the chunks joined with the context separator.
	Context string `json:"context"`
	// Chunks lists each retrieved chunk in retrieval order.
	Chunks []ChunkResult `json:"chunks"`
	// Categories are the categories the chunks were drawn from.
	Categories []string `json:"categories"`
	// Found is false when there is no usable context.
	Found bool `json:"found"`
	// Message is the user-facing explanation when nothing was found.
	Message string `json:"message,omitempty"`
}

// ChunkResult is a single retrieved chunk.
type ChunkResult struct {
	Category string  `json:"category"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

// StatusInput defines the input parameters for the get_index_status tool.
type StatusInput struct{}

// StatusOutput describes the index and the retrieval service.
type StatusOutput struct {
	// Ready is true once categories and exemplar embeddings are loaded.
	Ready bool `json:"ready"`
	// TotalChunks is the row count of the whole store.
	TotalChunks uint64 `json:"total_chunks"`
	// Categories lists each loaded category with its row count.
	Categories []CategoryStatus `json:"categories"`
}

// CategoryStatus is the index state of one category.
type CategoryStatus struct {
	Name     string   `json:"name"`
	Chunks   uint64   `json:"chunks"`
	Keywords []string `json:"keywords"`
}
