package storage

import (
	"fmt"

	"github.com/bull/category-rag/internal/config"
)

// Open connects to the backend selected by cfg.Backend. dimension is the
// embedding provider's vector length.
func Open(cfg config.VectorStoreConfig, dimension int) (Store, error) {
	switch cfg.Backend {
	case config.BackendQdrant, "":
		return NewQdrantStorage(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.Collection, dimension)
	case config.BackendPostgres:
		return NewPostgresStorage(cfg.Postgres, dimension)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
