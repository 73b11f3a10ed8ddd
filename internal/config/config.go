// Package config loads runtime settings from an optional YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by the ingest job and the server.
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Selection   SelectionConfig   `yaml:"selection"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	GitHubToken string            `yaml:"-"`
}

// VectorStoreConfig selects the store backend and holds its connection details.
type VectorStoreConfig struct {
	Backend  string         `yaml:"backend"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// QdrantConfig holds gRPC connection details for Qdrant.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// PostgresConfig holds connection details for a pgvector-enabled PostgreSQL.
type PostgresConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Name           string        `yaml:"name"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"-"`
	SSLMode        string        `yaml:"sslmode"`
	Table          string        `yaml:"table"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Backend   string `yaml:"backend"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BaseURL   string `yaml:"base_url"`
	BatchSize int    `yaml:"batch_size"`
	APIKey    string `yaml:"-"`
}

// ClassifierConfig configures the zero-shot classifier.
type ClassifierConfig struct {
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"`
}

// ChunkingConfig configures the word-window chunker and keyword extraction.
type ChunkingConfig struct {
	Size          int    `yaml:"size"`
	Overlap       int    `yaml:"overlap"`
	KeywordTopK   int    `yaml:"keyword_top_k"`
	StopwordsFile string `yaml:"stopwords_file"`
}

// SelectionConfig holds the category selection policy.
type SelectionConfig struct {
	Floor          float64 `yaml:"floor"`
	Band           float64 `yaml:"band"`
	WeightCosine   float64 `yaml:"weight_cosine"`
	WeightKeyword  float64 `yaml:"weight_keyword"`
	WeightZeroShot float64 `yaml:"weight_zero_shot"`
	FetchLimit     int     `yaml:"fetch_limit"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// ServerConfig configures the serving binary.
type ServerConfig struct {
	Port       string `yaml:"port"`
	ServerMode bool   `yaml:"server_mode"`
}

// LogConfig configures the root slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Backend names.
const (
	BackendQdrant    = "qdrant"
	BackendPostgres  = "postgres"
	BackendOpenAI    = "openai"
	BackendLangChain = "langchain"
)

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	return &Config{
		DataDir: "./data",
		VectorStore: VectorStoreConfig{
			Backend: BackendQdrant,
			Qdrant: QdrantConfig{
				Host:       "localhost",
				Port:       6334,
				Collection: "chunks",
			},
			Postgres: PostgresConfig{
				Host:           "localhost",
				Port:           5432,
				SSLMode:        "disable",
				Table:          "data",
				ConnectTimeout: 10 * time.Second,
			},
		},
		Embedding: EmbeddingConfig{
			Backend:   BackendOpenAI,
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			BatchSize: 500,
		},
		Classifier: ClassifierConfig{
			Model: "gpt-4o-mini",
		},
		Chunking: ChunkingConfig{
			Size:        150,
			Overlap:     20,
			KeywordTopK: 10,
		},
		Selection: SelectionConfig{
			Floor:          0.1,
			Band:           0.05,
			WeightCosine:   0.4,
			WeightKeyword:  0.3,
			WeightZeroShot: 0.3,
			FetchLimit:     5,
		},
		Ingest: IngestConfig{Workers: workers},
		Server: ServerConfig{Port: "8080"},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config from defaults, the YAML file at path (if it exists),
// a .env file in the working directory (if present) and the environment.
// An empty path falls back to RAG_CONFIG.
func Load(path string) (*Config, error) {
	// .env is optional; production relies on the real environment.
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("RAG_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DataDir = getEnv("DATA_DIR", c.DataDir)

	vs := &c.VectorStore
	vs.Backend = strings.ToLower(getEnv("VECTOR_STORE", vs.Backend))
	vs.Qdrant.Host = getEnv("QDRANT_HOST", vs.Qdrant.Host)
	vs.Qdrant.Collection = getEnv("QDRANT_COLLECTION", vs.Qdrant.Collection)
	vs.Postgres.Host = getEnv("DB_HOST", vs.Postgres.Host)
	vs.Postgres.Name = getEnv("DB_NAME", vs.Postgres.Name)
	vs.Postgres.User = getEnv("DB_USER", vs.Postgres.User)
	vs.Postgres.Password = getEnv("DB_PASSWORD", vs.Postgres.Password)
	vs.Postgres.SSLMode = getEnv("DB_SSLMODE", vs.Postgres.SSLMode)
	vs.Postgres.Table = getEnv("DB_TABLE", vs.Postgres.Table)

	emb := &c.Embedding
	emb.Backend = strings.ToLower(getEnv("EMBEDDING_BACKEND", emb.Backend))
	emb.Model = getEnv("EMBEDDING_MODEL", emb.Model)
	emb.BaseURL = getEnv("EMBEDDING_BASE_URL", emb.BaseURL)
	emb.APIKey = getEnv("OPENAI_API_KEY", emb.APIKey)

	c.Classifier.Model = getEnv("CLASSIFIER_MODEL", c.Classifier.Model)
	c.Classifier.BaseURL = getEnv("CLASSIFIER_BASE_URL", c.Classifier.BaseURL)
	c.Classifier.APIKey = getEnv("OPENAI_API_KEY", c.Classifier.APIKey)

	c.Chunking.StopwordsFile = getEnv("STOPWORDS_FILE", c.Chunking.StopwordsFile)
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Log.Level = strings.ToLower(getEnv("LOG_LEVEL", c.Log.Level))
	c.Log.Format = strings.ToLower(getEnv("LOG_FORMAT", c.Log.Format))
	c.GitHubToken = getEnv("GITHUB_TOKEN", c.GitHubToken)

	ints := []struct {
		key string
		dst *int
	}{
		{"QDRANT_PORT", &vs.Qdrant.Port},
		{"DB_PORT", &vs.Postgres.Port},
		{"EMBEDDING_DIMENSION", &emb.Dimension},
		{"EMBEDDING_BATCH_SIZE", &emb.BatchSize},
		{"CHUNK_SIZE", &c.Chunking.Size},
		{"CHUNK_OVERLAP", &c.Chunking.Overlap},
		{"KEYWORD_TOP_K", &c.Chunking.KeywordTopK},
		{"FETCH_LIMIT", &c.Selection.FetchLimit},
		{"INGEST_WORKERS", &c.Ingest.Workers},
	}
	for _, kv := range ints {
		v, err := getEnvInt(kv.key, *kv.dst)
		if err != nil {
			return err
		}
		*kv.dst = v
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"SELECT_FLOOR", &c.Selection.Floor},
		{"SELECT_BAND", &c.Selection.Band},
		{"WEIGHT_COSINE", &c.Selection.WeightCosine},
		{"WEIGHT_KEYWORD", &c.Selection.WeightKeyword},
		{"WEIGHT_ZERO_SHOT", &c.Selection.WeightZeroShot},
	}
	for _, kv := range floats {
		v, err := getEnvFloat(kv.key, *kv.dst)
		if err != nil {
			return err
		}
		*kv.dst = v
	}

	if v := os.Getenv("DB_CONNECT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DB_CONNECT_TIMEOUT: %w", err)
		}
		vs.Postgres.ConnectTimeout = d
	}
	if v := os.Getenv("SERVER_MODE"); v != "" {
		c.Server.ServerMode = v == "true"
	}
	return nil
}

// Validate rejects settings the rest of the system cannot work with.
func (c *Config) Validate() error {
	switch c.VectorStore.Backend {
	case BackendQdrant, BackendPostgres:
	default:
		return fmt.Errorf("unknown vector store backend %q", c.VectorStore.Backend)
	}
	switch c.Embedding.Backend {
	case BackendOpenAI, BackendLangChain:
	default:
		return fmt.Errorf("unknown embedding backend %q", c.Embedding.Backend)
	}
	if c.Embedding.Dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.Chunking.Overlap)
	}
	if c.Chunking.KeywordTopK <= 0 {
		return fmt.Errorf("keyword top-k must be positive, got %d", c.Chunking.KeywordTopK)
	}
	if c.Selection.FetchLimit <= 0 {
		return fmt.Errorf("fetch limit must be positive, got %d", c.Selection.FetchLimit)
	}

	s := c.Selection
	if s.Floor < 0 || s.Floor > 1 {
		return fmt.Errorf("selection floor must be in [0,1], got %v", s.Floor)
	}
	if s.Band < 0 || s.Band > 1 {
		return fmt.Errorf("selection band must be in [0,1], got %v", s.Band)
	}
	if s.WeightCosine < 0 || s.WeightKeyword < 0 || s.WeightZeroShot < 0 {
		return errors.New("selection weights must not be negative")
	}
	if sum := s.WeightCosine + s.WeightKeyword + s.WeightZeroShot; math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("selection weights must sum to 1, got %v", sum)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
