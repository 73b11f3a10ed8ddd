package indexer

import "errors"

var (
	ErrEmbedderRequired = errors.New("embedding provider is required")
	ErrStoreRequired    = errors.New("vector store is required")
	ErrInvalidRoot      = errors.New("root is not a directory")
)
