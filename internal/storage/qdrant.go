package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	categoryField = "category"
	contentField  = "content"

	// hnswM is the graph degree used when the ANN index is enabled.
	hnswM = 16
)

// pointWriter is the subset of *qdrant.Client that Insert writes through.
type pointWriter interface {
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
}

// QdrantStorage stores chunks in a single Qdrant collection with a keyword
// payload index on category.
type QdrantStorage struct {
	client     *qdrant.Client
	points     pointWriter
	collection string
	dimension  int
	logger     *slog.Logger
	backOff    func() backoff.BackOff
}

var _ Store = (*QdrantStorage)(nil)

// NewQdrantStorage creates a new Qdrant client with health validation.
// It performs health check with retry on startup and fails fast if Qdrant is unreachable.
func NewQdrantStorage(host string, port int, collection string, dimension int) (*QdrantStorage, error) {
	if collection == "" {
		collection = DefaultCollection
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}

	// Create Qdrant client using gRPC
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	storage := &QdrantStorage{
		client:     client,
		points:     client,
		collection: collection,
		dimension:  dimension,
		logger:     slog.Default().With("component", "qdrant"),
		backOff:    newBackOff,
	}

	err = storage.healthCheckWithRetry(context.Background())
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}

	return storage, nil
}

func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (s *QdrantStorage) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error { return s.Health(ctx) }, backoff.WithContext(s.backOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (s *QdrantStorage) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}

	return nil
}

// Dimension returns the configured vector length.
func (s *QdrantStorage) Dimension() int {
	return s.dimension
}

func (s *QdrantStorage) collectionExists(ctx context.Context) (bool, error) {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// EnsureSchema creates the collection with cosine distance and the category
// payload index. An existing collection must have the configured dimension.
func (s *QdrantStorage) EnsureSchema(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return fmt.Errorf("failed to get collection info: %w", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		return checkDimension("collection "+s.collection, int(size), s.dimension)
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
		HnswConfig: &qdrant.HnswConfigDiff{
			M: qdrant.PtrOf(uint64(hnswM)),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Without this index, category filtering falls back to a full payload scan.
	if err := s.createCategoryIndex(ctx); err != nil {
		return fmt.Errorf("failed to create payload index: %w", err)
	}

	s.logger.Info("created collection", "collection", s.collection, "dimension", s.dimension)
	return nil
}

func (s *QdrantStorage) createCategoryIndex(ctx context.Context) error {
	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      categoryField,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create index for field %s: %w", categoryField, err)
	}
	return nil
}

// Reset drops the collection and recreates it empty.
func (s *QdrantStorage) Reset(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		if err := s.client.DeleteCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
	}
	return s.EnsureSchema(ctx)
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (s *QdrantStorage) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}

	return backoff.Retry(operation, backoff.WithContext(s.backOff(), ctx))
}

// Insert stores rows under fresh UUID point IDs, in batches of 100.
// All dimensions are checked before anything is written. If a batch fails,
// the points of the batches already written are deleted so the collection
// holds either every row or none of them.
func (s *QdrantStorage) Insert(ctx context.Context, rows []Row) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	if err := checkRows(rows, s.dimension); err != nil {
		return err
	}

	written := make([]*qdrant.PointId, 0, len(rows))
	for i := 0; i < len(rows); i += insertBatchSize {
		end := min(i+insertBatchSize, len(rows))

		batch := rows[i:end]
		points := make([]*qdrant.PointStruct, len(batch))
		ids := make([]*qdrant.PointId, len(batch))
		for j, row := range batch {
			ids[j] = qdrant.NewIDUUID(uuid.New().String())
			points[j] = &qdrant.PointStruct{
				Id:      ids[j],
				Vectors: qdrant.NewVectors(row.Embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					contentField:  row.Content,
					categoryField: row.Category,
				}),
			}
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			err = fmt.Errorf("failed to upsert batch %d-%d: %w", i, end, err)
			// A failed upsert may have partially applied, so its IDs go too.
			written = append(written, ids...)
			if rbErr := s.deletePoints(context.WithoutCancel(ctx), written); rbErr != nil {
				s.logger.Error("rollback of partial insert failed", "points", len(written), "error", rbErr)
				return errors.Join(err, fmt.Errorf("rollback partial insert: %w", rbErr))
			}
			s.logger.Warn("rolled back partial insert", "points", len(written))
			return err
		}
		written = append(written, ids...)
	}

	s.logger.Debug("inserted rows", "count", len(rows))
	return nil
}

// deletePoints removes the given points, retrying with backoff.
func (s *QdrantStorage) deletePoints(ctx context.Context, ids []*qdrant.PointId) error {
	if len(ids) == 0 {
		return nil
	}
	operation := func() error {
		_, err := s.points.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Points:         qdrant.NewPointsSelector(ids...),
			Wait:           qdrant.PtrOf(true),
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(s.backOff(), ctx))
}

// Reindex rebuilds the HNSW graph by disabling it (m=0) and re-enabling it,
// then recreates the category payload index.
func (s *QdrantStorage) Reindex(ctx context.Context) error {
	for _, m := range []uint64{0, hnswM} {
		err := s.client.UpdateCollection(ctx, &qdrant.UpdateCollection{
			CollectionName: s.collection,
			HnswConfig: &qdrant.HnswConfigDiff{
				M: qdrant.PtrOf(m),
			},
		})
		if err != nil {
			return fmt.Errorf("failed to set hnsw m=%d: %w", m, err)
		}
	}

	_, err := s.client.DeleteFieldIndex(ctx, &qdrant.DeleteFieldIndexCollection{
		CollectionName: s.collection,
		FieldName:      categoryField,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("failed to drop index for field %s: %w", categoryField, err)
	}
	if err := s.createCategoryIndex(ctx); err != nil {
		return err
	}

	s.logger.Info("rebuilt index", "collection", s.collection)
	return nil
}

// Search performs a filtered vector similarity search within category.
// Qdrant returns cosine similarity, ordered nearest first.
func (s *QdrantStorage) Search(ctx context.Context, category string, embedding []float32, limit int) ([]Match, error) {
	if err := checkDimension("query", len(embedding), s.dimension); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []Match{}, nil
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(embedding...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(categoryField, category),
			},
		},
		Limit:       qdrant.PtrOf(uint64(limit)),
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search category %s: %w", category, err)
	}

	matches := make([]Match, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		matches = append(matches, Match{
			Content:  payload[contentField].GetStringValue(),
			Category: payload[categoryField].GetStringValue(),
			Score:    float64(result.Score),
		})
	}

	return matches, nil
}

// Count returns the exact number of points in category, or in the whole
// collection when category is empty.
func (s *QdrantStorage) Count(ctx context.Context, category string) (uint64, error) {
	req := &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	}
	if category != "" {
		req.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(categoryField, category)},
		}
	}

	n, err := s.client.Count(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return n, nil
}

// Close closes the Qdrant client connection.
func (s *QdrantStorage) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
