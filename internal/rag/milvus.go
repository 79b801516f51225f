package rag

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/54b3r/docchat-go/internal/chunker"
)

// Milvus field names.
const (
	milvusFieldID        = "id"
	milvusFieldText      = "text"
	milvusFieldSource    = "source"
	milvusFieldIndex     = "chunk_index"
	milvusFieldOffset    = "offset"
	milvusFieldEmbedding = "embedding"
)

// MilvusConfig holds connection and collection settings for Milvus.
type MilvusConfig struct {
	// Address is the Milvus gRPC endpoint (default: localhost:19530).
	Address string

	// Collection is the collection name (default: docchat).
	Collection string

	// Dimension is the embedding vector size.
	Dimension int

	// M and EfConstruction tune the HNSW index (defaults: 16, 256).
	M              int
	EfConstruction int
}

// MilvusIndex implements VectorIndex backed by a Milvus collection with an
// HNSW cosine index.
type MilvusIndex struct {
	client client.Client
	cfg    *MilvusConfig
}

// NewMilvusIndex connects to Milvus and ensures the collection exists.
func NewMilvusIndex(ctx context.Context, cfg *MilvusConfig) (*MilvusIndex, error) {
	if cfg.Address == "" {
		cfg.Address = "localhost:19530"
	}
	if cfg.Collection == "" {
		cfg.Collection = "docchat"
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("milvus: dimension must be set")
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfConstruction == 0 {
		cfg.EfConstruction = 256
	}

	c, err := client.NewGrpcClient(ctx, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("milvus: connect %s: %w", cfg.Address, err)
	}

	idx := &MilvusIndex{client: c, cfg: cfg}
	if err := idx.ensureCollection(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return idx, nil
}

// ensureCollection creates, indexes and loads the collection if missing.
func (m *MilvusIndex) ensureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("milvus: check collection: %w", err)
	}
	if has {
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.cfg.Collection,
		AutoID:         true,
		Fields: []*entity.Field{
			{Name: milvusFieldID, DataType: entity.FieldTypeInt64, PrimaryKey: true, AutoID: true},
			{Name: milvusFieldText, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "65535"}},
			{Name: milvusFieldSource, DataType: entity.FieldTypeVarChar, TypeParams: map[string]string{"max_length": "4096"}},
			{Name: milvusFieldIndex, DataType: entity.FieldTypeInt64},
			{Name: milvusFieldOffset, DataType: entity.FieldTypeInt64},
			{Name: milvusFieldEmbedding, DataType: entity.FieldTypeFloatVector, TypeParams: map[string]string{"dim": fmt.Sprintf("%d", m.cfg.Dimension)}},
		},
	}
	if err := m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("milvus: create collection: %w", err)
	}

	hnsw, err := entity.NewIndexHNSW(entity.COSINE, m.cfg.M, m.cfg.EfConstruction)
	if err != nil {
		return fmt.Errorf("milvus: index params: %w", err)
	}
	if err := m.client.CreateIndex(ctx, m.cfg.Collection, milvusFieldEmbedding, hnsw, false); err != nil {
		return fmt.Errorf("milvus: create index: %w", err)
	}
	if err := m.client.LoadCollection(ctx, m.cfg.Collection, false); err != nil {
		return fmt.Errorf("milvus: load collection: %w", err)
	}
	return nil
}

// Add inserts one row and flushes it so it is visible to the next search.
func (m *MilvusIndex) Add(ctx context.Context, embedding []float32, chunk chunker.Chunk) error {
	if len(embedding) != m.cfg.Dimension {
		return fmt.Errorf("milvus: embedding has %d dimensions, want %d", len(embedding), m.cfg.Dimension)
	}
	cols := []entity.Column{
		entity.NewColumnVarChar(milvusFieldText, []string{chunk.Text}),
		entity.NewColumnVarChar(milvusFieldSource, []string{chunk.Source}),
		entity.NewColumnInt64(milvusFieldIndex, []int64{int64(chunk.Index)}),
		entity.NewColumnInt64(milvusFieldOffset, []int64{int64(chunk.Offset)}),
		entity.NewColumnFloatVector(milvusFieldEmbedding, m.cfg.Dimension, [][]float32{embedding}),
	}
	if _, err := m.client.Insert(ctx, m.cfg.Collection, "", cols...); err != nil {
		return fmt.Errorf("milvus: insert: %w", err)
	}
	if err := m.client.Flush(ctx, m.cfg.Collection, false); err != nil {
		return fmt.Errorf("milvus: flush: %w", err)
	}
	return nil
}

// Search runs an HNSW cosine search and drops hits below minScore.
func (m *MilvusIndex) Search(ctx context.Context, query []float32, k int, minScore float32) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, fmt.Errorf("milvus: search params: %w", err)
	}

	results, err := m.client.Search(ctx, m.cfg.Collection, nil, "",
		[]string{milvusFieldText, milvusFieldSource, milvusFieldIndex, milvusFieldOffset},
		[]entity.Vector{entity.FloatVector(query)},
		milvusFieldEmbedding, entity.COSINE, k, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus: search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	res := results[0]
	matches := make([]Match, 0, res.ResultCount)
	for i := 0; i < res.ResultCount; i++ {
		if res.Scores[i] < minScore {
			continue
		}
		mt := Match{Score: res.Scores[i]}
		for _, field := range res.Fields {
			switch col := field.(type) {
			case *entity.ColumnVarChar:
				switch col.Name() {
				case milvusFieldText:
					mt.Chunk.Text = col.Data()[i]
				case milvusFieldSource:
					mt.Chunk.Source = col.Data()[i]
				}
			case *entity.ColumnInt64:
				switch col.Name() {
				case milvusFieldIndex:
					mt.Chunk.Index = int(col.Data()[i])
				case milvusFieldOffset:
					mt.Chunk.Offset = int(col.Data()[i])
				}
			}
		}
		matches = append(matches, mt)
	}
	return matches, nil
}

// Clear drops and recreates the collection.
func (m *MilvusIndex) Clear(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("milvus: check collection: %w", err)
	}
	if has {
		if err := m.client.DropCollection(ctx, m.cfg.Collection); err != nil {
			return fmt.Errorf("milvus: drop collection: %w", err)
		}
	}
	return m.ensureCollection(ctx)
}

// Close closes the gRPC connection.
func (m *MilvusIndex) Close() error {
	return m.client.Close()
}
