package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"RAG_CONFIG", "DATA_DIR", "VECTOR_STORE", "QDRANT_HOST", "QDRANT_PORT", "QDRANT_COLLECTION",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD", "DB_SSLMODE", "DB_TABLE",
		"DB_CONNECT_TIMEOUT", "EMBEDDING_BACKEND", "EMBEDDING_MODEL", "EMBEDDING_DIMENSION",
		"EMBEDDING_BASE_URL", "EMBEDDING_BATCH_SIZE", "OPENAI_API_KEY", "CLASSIFIER_MODEL",
		"CLASSIFIER_BASE_URL", "CHUNK_SIZE", "CHUNK_OVERLAP", "KEYWORD_TOP_K", "STOPWORDS_FILE",
		"SELECT_FLOOR", "SELECT_BAND", "WEIGHT_COSINE", "WEIGHT_KEYWORD", "WEIGHT_ZERO_SHOT",
		"FETCH_LIMIT", "INGEST_WORKERS", "PORT", "SERVER_MODE", "LOG_LEVEL", "LOG_FORMAT", "GITHUB_TOKEN",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
	// Keep a stray .env in the working directory out of the picture.
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "./data", cfg.DataDir)
	assert.Equal(t, BackendQdrant, cfg.VectorStore.Backend)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "data", cfg.VectorStore.Postgres.Table)
	assert.Equal(t, 10*time.Second, cfg.VectorStore.Postgres.ConnectTimeout)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, 150, cfg.Chunking.Size)
	assert.Equal(t, 20, cfg.Chunking.Overlap)
	assert.Equal(t, 10, cfg.Chunking.KeywordTopK)
	assert.Equal(t, 0.1, cfg.Selection.Floor)
	assert.Equal(t, 0.05, cfg.Selection.Band)
	assert.Equal(t, 5, cfg.Selection.FetchLimit)
	assert.GreaterOrEqual(t, cfg.Ingest.Workers, 1)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "rag.yaml")
	yamlDoc := `
data_dir: /srv/corpus
vector_store:
  backend: postgres
  postgres:
    host: db.internal
    name: rag
    connect_timeout: 3s
chunking:
  size: 200
selection:
  band: 0.08
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("DB_HOST", "override.internal")
	t.Setenv("CHUNK_OVERLAP", "30")
	t.Setenv("SERVER_MODE", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/corpus", cfg.DataDir)
	assert.Equal(t, BackendPostgres, cfg.VectorStore.Backend)
	assert.Equal(t, "override.internal", cfg.VectorStore.Postgres.Host)
	assert.Equal(t, "rag", cfg.VectorStore.Postgres.Name)
	assert.Equal(t, 3*time.Second, cfg.VectorStore.Postgres.ConnectTimeout)
	assert.Equal(t, 200, cfg.Chunking.Size)
	assert.Equal(t, 30, cfg.Chunking.Overlap)
	assert.Equal(t, 0.08, cfg.Selection.Band)
	assert.True(t, cfg.Server.ServerMode)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Chunking, cfg.Chunking)
}

func TestLoad_BadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHUNK_SIZE", "many")

	_, err := Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.VectorStore.Backend = "milvus" }},
		{"unknown embedder", func(c *Config) { c.Embedding.Backend = "local" }},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }},
		{"zero chunk size", func(c *Config) { c.Chunking.Size = 0 }},
		{"negative overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"floor above one", func(c *Config) { c.Selection.Floor = 1.5 }},
		{"negative band", func(c *Config) { c.Selection.Band = -0.1 }},
		{"weights off", func(c *Config) { c.Selection.WeightCosine = 0.5 }},
		{"zero fetch limit", func(c *Config) { c.Selection.FetchLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"key":"value"`)
}
