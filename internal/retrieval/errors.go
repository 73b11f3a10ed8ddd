package retrieval

import "errors"

var (
	ErrNotReady           = errors.New("retrieval service not initialized")
	ErrEmbedderRequired   = errors.New("embedding provider is required")
	ErrClassifierRequired = errors.New("zero-shot classifier is required")
	ErrStoreRequired      = errors.New("vector store is required")
	ErrNoCategories       = errors.New("no categories found")
)
