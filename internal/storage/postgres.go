package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/bull/category-rag/internal/config"
)

// DefaultConnectTimeout bounds connection establishment.
const DefaultConnectTimeout = 10 * time.Second

// PostgresStorage stores chunks in a pgvector table
// (content text, embedding vector(N), category text).
//
// Every operation opens its own connection and closes it on return; no pool
// is shared between calls.
type PostgresStorage struct {
	dsn            string
	table          string
	dimension      int
	connectTimeout time.Duration
	logger         *slog.Logger
}

var _ Store = (*PostgresStorage)(nil)

// NewPostgresStorage validates cfg and checks that the database is reachable.
func NewPostgresStorage(cfg config.PostgresConfig, dimension int) (*PostgresStorage, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	s := &PostgresStorage{
		dsn:            buildDSN(cfg, timeout),
		table:          table,
		dimension:      dimension,
		connectTimeout: timeout,
		logger:         slog.Default().With("component", "postgres"),
	}

	if err := s.Health(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// buildDSN renders a libpq key/value connection string.
func buildDSN(cfg config.PostgresConfig, timeout time.Duration) string {
	secs := max(1, int(timeout.Round(time.Second)/time.Second))
	parts := []string{
		"host=" + dsnValue(cfg.Host),
		"port=" + strconv.Itoa(cfg.Port),
		"dbname=" + dsnValue(cfg.Name),
		"user=" + dsnValue(cfg.User),
		"connect_timeout=" + strconv.Itoa(secs),
	}
	if cfg.Password != "" {
		parts = append(parts, "password="+dsnValue(cfg.Password))
	}
	if cfg.SSLMode != "" {
		parts = append(parts, "sslmode="+dsnValue(cfg.SSLMode))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes v when it is empty or contains spaces, quotes or backslashes.
func dsnValue(v string) string {
	if v != "" && !strings.ContainsAny(v, " '\\") {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// connect opens a single-connection handle and pings it within the connect
// timeout. Callers must Close the returned handle.
func (s *PostgresStorage) connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return db, nil
}

func (s *PostgresStorage) quotedTable() string {
	return pq.QuoteIdentifier(s.table)
}

func (s *PostgresStorage) indexName() string {
	return pq.QuoteIdentifier(s.table + "_embedding_idx")
}

// Health opens and closes one connection.
func (s *PostgresStorage) Health(ctx context.Context) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	return db.Close()
}

// Dimension returns the configured vector length.
func (s *PostgresStorage) Dimension() int {
	return s.dimension
}

// EnsureSchema enables pgvector and creates the table and its category index.
func (s *PostgresStorage) EnsureSchema(ctx context.Context) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			category TEXT NOT NULL
		)`, s.quotedTable(), s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (category)`,
			pq.QuoteIdentifier(s.table+"_category_idx"), s.quotedTable()),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Reset truncates the table and restarts its identity sequence.
func (s *PostgresStorage) Reset(ctx context.Context) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, s.quotedTable())); err != nil {
		return fmt.Errorf("failed to truncate table: %w", err)
	}
	s.logger.Info("truncated table", "table", s.table)
	return nil
}

// Insert loads all rows in one transaction with COPY. Either every row is
// written or none is.
func (s *PostgresStorage) Insert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := checkRows(rows, s.dimension); err != nil {
		return err
	}

	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(s.table, "content", "embedding", "category"))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}
	for i, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.Content, VectorLiteral(row.Embedding), row.Category); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy row %d: %w", i, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert: %w", err)
	}
	s.logger.Debug("inserted rows", "count", len(rows))
	return nil
}

// Reindex drops and recreates the IVFFlat cosine index, then analyzes the
// table for the query planner.
func (s *PostgresStorage) Reindex(ctx context.Context) error {
	db, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	stmts := []string{
		fmt.Sprintf(`DROP INDEX IF EXISTS %s`, s.indexName()),
		fmt.Sprintf(`CREATE INDEX %s ON %s USING ivfflat (embedding vector_cosine_ops)`, s.indexName(), s.quotedTable()),
		fmt.Sprintf(`ANALYZE %s`, s.quotedTable()),
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to rebuild index: %w", err)
		}
	}
	s.logger.Info("rebuilt index", "table", s.table)
	return nil
}

// Search orders rows of category by cosine distance to embedding, nearest
// first. Score is reported as 1 - distance.
func (s *PostgresStorage) Search(ctx context.Context, category string, embedding []float32, limit int) ([]Match, error) {
	if err := checkDimension("query", len(embedding), s.dimension); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Match{}, nil
	}

	db, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := fmt.Sprintf(`SELECT content, embedding <=> $1::vector AS distance
		FROM %s
		WHERE category = $2
		ORDER BY distance
		LIMIT $3`, s.quotedTable())

	rows, err := db.QueryContext(ctx, query, VectorLiteral(embedding), category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search category %s: %w", category, err)
	}
	defer rows.Close()

	matches := make([]Match, 0, limit)
	for rows.Next() {
		var content string
		var distance float64
		if err := rows.Scan(&content, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, Match{Content: content, Category: category, Score: 1 - distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return matches, nil
}

// Count returns the number of rows in category, or in the table when
// category is empty.
func (s *PostgresStorage) Count(ctx context.Context, category string) (uint64, error) {
	db, err := s.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int64
	if category == "" {
		err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.quotedTable())).Scan(&n)
	} else {
		err = db.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s WHERE category = $1`, s.quotedTable()), category).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return uint64(n), nil
}

// Close is a no-op; connections are scoped to single calls.
func (s *PostgresStorage) Close() error {
	return nil
}

// VectorLiteral renders v in pgvector's text form, e.g. "[0.1,-0.2]".
func VectorLiteral(v []float32) string {
	var b strings.Builder
	b.Grow(len(v)*10 + 2)
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
