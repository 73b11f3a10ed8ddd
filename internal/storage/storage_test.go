package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/category-rag/internal/config"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[]", VectorLiteral(nil))
	assert.Equal(t, "[0.5,-0.25,1]", VectorLiteral([]float32{0.5, -0.25, 1}))
	assert.Equal(t, "[0.1]", VectorLiteral([]float32{0.1}))
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(config.PostgresConfig{
		Host:     "db",
		Port:     5432,
		Name:     "rag",
		User:     "postgres",
		Password: "p@ss word",
		SSLMode:  "disable",
	}, 10*time.Second)

	assert.Equal(t, "host=db port=5432 dbname=rag user=postgres connect_timeout=10 password='p@ss word' sslmode=disable", dsn)
}

func TestBuildDSN_MinimumTimeout(t *testing.T) {
	dsn := buildDSN(config.PostgresConfig{Host: "db", Port: 5432, Name: "rag", User: "u"}, 200*time.Millisecond)
	assert.Contains(t, dsn, "connect_timeout=1")
	assert.NotContains(t, dsn, "password=")
}

func TestDSNValue(t *testing.T) {
	assert.Equal(t, "plain", dsnValue("plain"))
	assert.Equal(t, "''", dsnValue(""))
	assert.Equal(t, `'it\'s'`, dsnValue("it's"))
	assert.Equal(t, `'a\\b'`, dsnValue(`a\b`))
}

func TestCheckRows(t *testing.T) {
	rows := []Row{
		{Content: "ok", Embedding: []float32{1, 0, 0}, Category: "a"},
		{Content: "short", Embedding: []float32{1, 0}, Category: "a"},
	}
	assert.NoError(t, checkRows(rows[:1], 3))

	err := checkRows(rows, 3)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Contains(t, err.Error(), "row 1")
}

func TestInsertAndSearch_RejectBeforeConnecting(t *testing.T) {
	// A store that was never connected fails only when it reaches the network,
	// so these errors prove validation runs first.
	pg := &PostgresStorage{dimension: 3}
	ctx := context.Background()

	assert.ErrorIs(t, pg.Insert(ctx, nil), ErrNoRows)
	assert.ErrorIs(t, pg.Insert(ctx, []Row{{Content: "x", Embedding: []float32{1}, Category: "a"}}), ErrDimensionMismatch)

	_, err := pg.Search(ctx, "a", []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	matches, err := pg.Search(ctx, "a", []float32{1, 0, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, matches)

	qd := &QdrantStorage{dimension: 3}
	assert.ErrorIs(t, qd.Insert(ctx, []Row{}), ErrNoRows)
	_, err = qd.Search(ctx, "a", []float32{1}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(config.VectorStoreConfig{Backend: "redis"}, 3)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}
