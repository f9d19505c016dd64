package rag

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Common errors for vector store operations
var (
	ErrInvalidDimension = errors.New("invalid vector dimension")
	ErrConnectionFailed = errors.New("failed to connect to Milvus")
	ErrInsertFailed     = errors.New("failed to insert records")
	ErrSearchFailed     = errors.New("failed to search vectors")
	ErrMissingMetadata  = errors.New("required metadata fields missing")
)

// MilvusConfig holds configuration for Milvus connection and collection
type MilvusConfig struct {
	Address        string // Milvus server address (e.g., "localhost:19530")
	CollectionName string // Name of the collection
	Dimension      int    // Vector dimension (384 for all-minilm)

	// HNSW index parameters
	M              int // HNSW M parameter (default: 16)
	EfConstruction int // HNSW efConstruction (default: 256)
}

// DefaultMilvusConfig returns the default Milvus configuration
func DefaultMilvusConfig() MilvusConfig {
	return MilvusConfig{
		Address:        "localhost:19530",
		CollectionName: "fewshot_examples",
		Dimension:      384,
		M:              16,
		EfConstruction: 256,
	}
}

// MilvusStore implements VectorStore using Milvus
type MilvusStore struct {
	client client.Client
	config MilvusConfig
}

// NewMilvusStore connects to Milvus and ensures the collection exists with
// the example schema.
func NewMilvusStore(ctx context.Context, config MilvusConfig) (*MilvusStore, error) {
	if config.Dimension <= 0 {
		return nil, ErrInvalidDimension
	}

	c, err := client.NewGrpcClient(ctx, config.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &MilvusStore{
		client: c,
		config: config,
	}

	if err := store.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}

	return store, nil
}

// exampleSchema describes one row per example, keyed by position.
func exampleSchema(name string, dimension int) *entity.Schema {
	return &entity.Schema{
		CollectionName: name,
		Fields: []*entity.Field{
			{
				Name:       "position",
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
			},
			{
				Name:     "input",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "answer",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "65535",
				},
			},
			{
				Name:     "fingerprint",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": strconv.Itoa(dimension),
				},
			},
		},
	}
}

// ensureCollection creates, indexes and loads the collection if missing
func (m *MilvusStore) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.config.CollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if has {
		return m.client.LoadCollection(ctx, m.config.CollectionName, false)
	}

	schema := exampleSchema(m.config.CollectionName, m.config.Dimension)
	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, m.config.M, m.config.EfConstruction)
	if err != nil {
		return fmt.Errorf("failed to create index config: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.config.CollectionName, "embedding", idx, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := m.client.LoadCollection(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	return nil
}

// Insert adds example records and flushes them.
func (m *MilvusStore) Insert(ctx context.Context, records []ExampleRecord) error {
	if len(records) == 0 {
		return nil
	}

	positions := make([]int64, len(records))
	inputs := make([]string, len(records))
	answers := make([]string, len(records))
	fingerprints := make([]string, len(records))
	embeddings := make([][]float32, len(records))

	for i, rec := range records {
		if len(rec.Embedding) != m.config.Dimension {
			return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(rec.Embedding))
		}
		positions[i] = int64(rec.Position)
		inputs[i] = rec.Input
		answers[i] = rec.Answer
		fingerprints[i] = rec.Fingerprint
		embeddings[i] = rec.Embedding
	}

	columns := []entity.Column{
		entity.NewColumnInt64("position", positions),
		entity.NewColumnVarChar("input", inputs),
		entity.NewColumnVarChar("answer", answers),
		entity.NewColumnVarChar("fingerprint", fingerprints),
		entity.NewColumnFloatVector("embedding", m.config.Dimension, embeddings),
	}

	if _, err := m.client.Insert(ctx, m.config.CollectionName, "", columns...); err != nil {
		return fmt.Errorf("%w: %v", ErrInsertFailed, err)
	}

	if err := m.client.Flush(ctx, m.config.CollectionName, false); err != nil {
		return fmt.Errorf("failed to flush data: %w", err)
	}

	return nil
}

// Search performs a top-K cosine similarity search
func (m *MilvusStore) Search(ctx context.Context, queryVector []float32, topK int) ([]Match, error) {
	if len(queryVector) != m.config.Dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, m.config.Dimension, len(queryVector))
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	sp, err := entity.NewIndexHNSWSearchParam(64) // ef parameter for search
	if err != nil {
		return nil, fmt.Errorf("failed to create search params: %w", err)
	}

	results, err := m.client.Search(
		ctx,
		m.config.CollectionName,
		nil, // partition names
		"",  // no filter
		[]string{"position", "input", "answer"},
		[]entity.Vector{entity.FloatVector(queryVector)},
		"embedding",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}

	if len(results) == 0 {
		return []Match{}, nil
	}

	return matchesFromResult(results[0])
}

func matchesFromResult(res client.SearchResult) ([]Match, error) {
	matches := make([]Match, res.ResultCount)
	for i := range matches {
		matches[i].Score = res.Scores[i]
	}

	for _, field := range res.Fields {
		switch field.Name() {
		case "position":
			col, ok := field.(*entity.ColumnInt64)
			if !ok {
				return nil, fmt.Errorf("%w: position column has type %T", ErrMissingMetadata, field)
			}
			for i, v := range col.Data() {
				matches[i].Position = int(v)
			}
		case "input":
			col, ok := field.(*entity.ColumnVarChar)
			if !ok {
				return nil, fmt.Errorf("%w: input column has type %T", ErrMissingMetadata, field)
			}
			for i, v := range col.Data() {
				matches[i].Input = v
			}
		case "answer":
			col, ok := field.(*entity.ColumnVarChar)
			if !ok {
				return nil, fmt.Errorf("%w: answer column has type %T", ErrMissingMetadata, field)
			}
			for i, v := range col.Data() {
				matches[i].Answer = v
			}
		}
	}

	return matches, nil
}

// Count returns the collection row count
func (m *MilvusStore) Count(ctx context.Context) (int, error) {
	stats, err := m.client.GetCollectionStatistics(ctx, m.config.CollectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get stats: %w", err)
	}

	n, err := strconv.Atoi(stats["row_count"])
	if err != nil {
		return 0, fmt.Errorf("unexpected row_count %q: %w", stats["row_count"], err)
	}
	return n, nil
}

// Fingerprint reads the fingerprint column of the stored records. A
// collection created before the column existed fails here, which makes the
// selector rebuild it.
func (m *MilvusStore) Fingerprint(ctx context.Context) (string, error) {
	rs, err := m.client.Query(
		ctx,
		m.config.CollectionName,
		nil,
		"position >= 0",
		[]string{"fingerprint"},
		client.WithLimit(int64(fingerprintSample)),
	)
	if err != nil {
		return "", fmt.Errorf("failed to query fingerprint: %w", err)
	}
	return fingerprintFromColumn(rs.GetColumn("fingerprint"))
}

// fingerprintSample is how many rows Fingerprint compares
const fingerprintSample = 16

func fingerprintFromColumn(column entity.Column) (string, error) {
	if column == nil {
		return "", nil
	}
	col, ok := column.(*entity.ColumnVarChar)
	if !ok {
		return "", fmt.Errorf("%w: fingerprint column has type %T", ErrMissingMetadata, column)
	}
	values := col.Data()
	if len(values) == 0 {
		return "", nil
	}
	for _, v := range values[1:] {
		if v != values[0] {
			return "", nil
		}
	}
	return values[0], nil
}

// Reset drops the collection and creates an empty one
func (m *MilvusStore) Reset(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.config.CollectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return m.ensureCollection(ctx)
}

// Close releases resources and closes the Milvus connection
func (m *MilvusStore) Close() error {
	if m.client != nil {
		return m.client.Close()
	}
	return nil
}
