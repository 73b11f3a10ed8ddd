package storage

import "errors"

var (
	ErrStoreUnreachable  = errors.New("vector store unreachable")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	ErrNoRows            = errors.New("no rows to insert")
	ErrUnknownBackend    = errors.New("unknown vector store backend")
)
